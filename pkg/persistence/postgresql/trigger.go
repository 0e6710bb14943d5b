package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/persistence"
)

type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTriggerRepository(db *sql.DB, logger *slog.Logger) *TriggerRepository {
	return &TriggerRepository{db: db, logger: logger.With("module", "postgresql")}
}

const triggerColumns = `id, name, description, institute_id, event_name, idempotency, nodes, enabled, created_at, updated_at`

func (r *TriggerRepository) Triggers(ctx context.Context) ([]*models.Trigger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}
	defer rows.Close()

	return scanTriggers(rows)
}

func (r *TriggerRepository) TriggerByID(ctx context.Context, id string) (*models.Trigger, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE id = $1 AND deleted_at IS NULL`, id)

	trigger, err := scanTrigger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTriggerNotFound
		}

		return nil, fmt.Errorf("failed to load trigger %s: %w", id, err)
	}

	return trigger, nil
}

func (r *TriggerRepository) TriggersByEvent(ctx context.Context, eventName string) ([]*models.Trigger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers
		 WHERE event_name = $1 AND enabled AND deleted_at IS NULL
		 ORDER BY created_at`, eventName)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers for event %s: %w", eventName, err)
	}
	defer rows.Close()

	return scanTriggers(rows)
}

func (r *TriggerRepository) SaveTrigger(ctx context.Context, trigger *models.Trigger) error {
	nodes, err := json.Marshal(trigger.Nodes)
	if err != nil {
		return fmt.Errorf("failed to encode nodes for trigger %s: %w", trigger.ID, err)
	}

	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triggers (id, name, description, institute_id, event_name, idempotency, nodes, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			institute_id = EXCLUDED.institute_id,
			event_name = EXCLUDED.event_name,
			idempotency = EXCLUDED.idempotency,
			nodes = EXCLUDED.nodes,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL`,
		trigger.ID, trigger.Name, trigger.Description, trigger.InstituteID,
		trigger.EventName, nullableJSON(trigger.Idempotency), nodes, trigger.Enabled,
		trigger.CreatedAt, trigger.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}

	return nil
}

func (r *TriggerRepository) DeleteTrigger(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE triggers SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for trigger %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrTriggerNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (*models.Trigger, error) {
	var (
		trigger     models.Trigger
		description sql.NullString
		idempotency []byte
		nodes       []byte
	)

	err := row.Scan(&trigger.ID, &trigger.Name, &description, &trigger.InstituteID,
		&trigger.EventName, &idempotency, &nodes, &trigger.Enabled,
		&trigger.CreatedAt, &trigger.UpdatedAt)
	if err != nil {
		return nil, err
	}

	trigger.Description = description.String
	trigger.Idempotency = idempotency

	err = json.Unmarshal(nodes, &trigger.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nodes for trigger %s: %w", trigger.ID, err)
	}

	return &trigger, nil
}

func scanTriggers(rows *sql.Rows) ([]*models.Trigger, error) {
	triggers := make([]*models.Trigger, 0)

	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger row: %w", err)
		}

		triggers = append(triggers, trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger rows: %w", err)
	}

	return triggers, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}
