// Package models defines the core domain models for the workflow trigger engine.
package models

import (
	"encoding/json"
	"time"
)

// Trigger binds a domain event name to a node sequence and an idempotency policy.
// A trigger is immutable during a run; administrators mutate it between runs.
type Trigger struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"           validate:"required,min=3"`
	Description string          `json:"description"`
	InstituteID string          `json:"institute_id"   validate:"required"`
	EventName   string          `json:"event_name"     validate:"required"`
	Idempotency json.RawMessage `json:"idempotency,omitempty"` // Raw settings blob, parsed per run
	Nodes       []*NodeConfig   `json:"nodes"`
	Enabled     bool            `json:"enabled"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
