// Package postgresql provides the production persistence layer.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/campushq/pulse/pkg/persistence/sqlbase"
	"github.com/campushq/pulse/pkg/protocol"

	_ "github.com/lib/pq"
)

type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	triggerRepo  *TriggerRepository
	executionLog *ExecutionLog
	keys         *KeyStore
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		triggerRepo:  NewTriggerRepository(database, logger),
		executionLog: NewExecutionLog(database),
		keys:         NewKeyStore(database),
	}, nil
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

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
