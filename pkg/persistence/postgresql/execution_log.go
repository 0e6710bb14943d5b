package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campushq/pulse/pkg/models"
)

type ExecutionLog struct {
	db *sql.DB
}

func NewExecutionLog(db *sql.DB) *ExecutionLog {
	return &ExecutionLog{db: db}
}

func (l *ExecutionLog) Append(ctx context.Context, runID string, detail *models.NodeExecutionDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode execution detail %s: %w", detail.ID, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO execution_details (id, run_id, node_id, node_kind, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		detail.ID, runID, detail.NodeID, string(detail.NodeKind),
		string(detail.Status), payload, detail.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append execution detail %s: %w", detail.ID, err)
	}

	return nil
}

func (l *ExecutionLog) DetailsByRun(ctx context.Context, runID string) ([]*models.NodeExecutionDetail, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT detail FROM execution_details WHERE run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution details for run %s: %w", runID, err)
	}
	defer rows.Close()

	details := make([]*models.NodeExecutionDetail, 0)

	for rows.Next() {
		var payload []byte

		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan execution detail row: %w", err)
		}

		var detail models.NodeExecutionDetail

		if err := json.Unmarshal(payload, &detail); err != nil {
			return nil, fmt.Errorf("failed to decode execution detail: %w", err)
		}

		details = append(details, &detail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution detail rows: %w", err)
	}

	return details, nil
}
