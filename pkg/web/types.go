// Package web provides the administrative REST API: trigger CRUD, run audit,
// and manual firing.
package web

import (
	"encoding/json"

	"github.com/campushq/pulse/pkg/models"
)

// CreateTriggerRequest is the request body for creating a trigger.
type CreateTriggerRequest struct {
	Name        string         `json:"name"         validate:"required,min=3"`
	Description string         `json:"description"`
	InstituteID string         `json:"institute_id" validate:"required"`
	EventName   string         `json:"event_name"   validate:"required"`
	Idempotency map[string]any `json:"idempotency,omitempty"`
	Nodes       []NodeRequest  `json:"nodes"        validate:"dive"`
	Enabled     bool           `json:"enabled"`
}

// NodeRequest is one node of a trigger's sequence.
type NodeRequest struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"   validate:"required"`
	Config   map[string]any `json:"config"`
	Required bool           `json:"required"`
	Enabled  bool           `json:"enabled"`
}

// UpdateTriggerRequest supports partial updates. Nil fields are left as-is.
type UpdateTriggerRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	EventName   *string        `json:"event_name,omitempty"`
	Idempotency map[string]any `json:"idempotency,omitempty"`
	Nodes       []NodeRequest  `json:"nodes,omitempty"       validate:"omitempty,dive"`
	Enabled     *bool          `json:"enabled,omitempty"`
}

// FireTriggerRequest is the body of a manual firing.
type FireTriggerRequest struct {
	EventID string         `json:"event_id"`
	Context map[string]any `json:"context"`
}

func (r CreateTriggerRequest) toModel(id string) (*models.Trigger, error) {
	trigger := &models.Trigger{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		InstituteID: r.InstituteID,
		EventName:   r.EventName,
		Nodes:       toNodeConfigs(r.Nodes),
		Enabled:     r.Enabled,
	}

	if r.Idempotency != nil {
		blob, err := json.Marshal(r.Idempotency)
		if err != nil {
			return nil, err
		}

		trigger.Idempotency = blob
	}

	return trigger, nil
}

func toNodeConfigs(nodes []NodeRequest) []*models.NodeConfig {
	configs := make([]*models.NodeConfig, 0, len(nodes))

	for _, node := range nodes {
		configs = append(configs, &models.NodeConfig{
			ID:       node.ID,
			Name:     node.Name,
			Kind:     models.NodeKind(node.Kind),
			Config:   node.Config,
			Required: node.Required,
			Enabled:  node.Enabled,
		})
	}

	return configs
}
