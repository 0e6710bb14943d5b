// Package persistence provides the storage abstraction for trigger
// configuration, idempotency keys, and the run execution log.
package persistence

import (
	"context"
	"errors"

	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

var ErrTriggerNotFound = errors.New("trigger not found")

// ExecutionLogStore extends the append-only sink with the read side used by
// the run-audit API.
type ExecutionLogStore interface {
	protocol.ExecutionLog

	DetailsByRun(ctx context.Context, runID string) ([]*models.NodeExecutionDetail, error)
}

type Persistence interface {
	Triggers() protocol.TriggerRepository
	Keys() idempotency.KeyStore
	ExecutionLog() ExecutionLogStore
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
