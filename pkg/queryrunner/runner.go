// Package queryrunner implements the data collaborator for QUERY nodes: named
// prebuilt queries plus literal queries with positional parameters, both
// returning rows as generic maps.
package queryrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// PrebuiltQuery is a named query with a declared parameter order. Node configs
// bind parameters by name; the runner maps them to positional arguments.
type PrebuiltQuery struct {
	Query  string
	Params []string
}

type Runner struct {
	db       *sql.DB
	logger   *slog.Logger
	prebuilt map[string]PrebuiltQuery
}

func New(logger *slog.Logger, db *sql.DB) *Runner {
	runner := &Runner{
		db:       db,
		logger:   logger.With("module", "queryrunner"),
		prebuilt: make(map[string]PrebuiltQuery),
	}
	runner.registerDefaults()

	return runner
}

func NewFromURL(ctx context.Context, logger *slog.Logger, databaseURL string) (*Runner, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(logger, db), nil
}

// RegisterPrebuilt adds or replaces a named query.
func (r *Runner) RegisterPrebuilt(name string, query PrebuiltQuery) {
	r.prebuilt[name] = query
}

func (r *Runner) registerDefaults() {
	r.RegisterPrebuilt("expiring_enrollments", PrebuiltQuery{
		Query: `SELECT user_id, email, phone_number, name, package_session_id, days_remaining
			FROM enrollment_expiry_view
			WHERE institute_id = $1 AND days_remaining = $2`,
		Params: []string{"institute_id", "days_remaining"},
	})
	r.RegisterPrebuilt("student_profile", PrebuiltQuery{
		Query: `SELECT user_id, email, phone_number, name
			FROM students WHERE institute_id = $1 AND user_id = $2`,
		Params: []string{"institute_id", "user_id"},
	})
	r.RegisterPrebuilt("unpaid_orders", PrebuiltQuery{
		Query: `SELECT order_id, user_id, amount, currency, due_date
			FROM orders WHERE institute_id = $1 AND status = 'PENDING'`,
		Params: []string{"institute_id"},
	})
}

func (r *Runner) RunPrebuilt(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	query, ok := r.prebuilt[name]
	if !ok {
		return nil, fmt.Errorf("prebuilt query %q not registered", name)
	}

	args := make([]any, 0, len(query.Params))

	for _, param := range query.Params {
		value, ok := params[param]
		if !ok {
			return nil, fmt.Errorf("prebuilt query %q missing parameter %q", name, param)
		}

		args = append(args, value)
	}

	return r.Run(ctx, query.Query, args)
}

func (r *Runner) Run(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	results := make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))

		for i, column := range columns {
			// lib/pq returns []byte for text columns; expressions want strings.
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return results, nil
}
