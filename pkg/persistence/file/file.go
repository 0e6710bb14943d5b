// Package file provides file-based persistence for development and tests.
// Triggers and execution details live as JSON files under a root directory;
// idempotency keys are held in process memory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/campushq/pulse/pkg/protocol"
)

type Persistence struct {
	root         string
	triggerRepo  *TriggerRepository
	executionLog *ExecutionLog
	keys         *KeyStore
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		triggerRepo:  NewTriggerRepository(cleanRoot),
		executionLog: NewExecutionLog(cleanRoot),
		keys:         NewKeyStore(),
	}
}

func (p *Persistence) Triggers() protocol.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) Keys() idempotency.KeyStore {
	return p.keys
}

func (p *Persistence) ExecutionLog() persistence.ExecutionLogStore {
	return p.executionLog
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
