// Package testutil provides test data builders shared across package tests.
package testutil

import (
	"encoding/json"

	"github.com/campushq/pulse/pkg/models"
	"github.com/google/uuid"
)

// CreateTestTrigger builds an enabled trigger with one transform node.
// Overrides mutate the defaults.
func CreateTestTrigger(overrides ...func(*models.Trigger)) *models.Trigger {
	trigger := &models.Trigger{
		ID:          uuid.NewString(),
		Name:        "Test Trigger",
		InstituteID: "inst-1",
		EventName:   "enrollment.created",
		Nodes:       []*models.NodeConfig{CreateTestNode()},
		Enabled:     true,
	}

	for _, override := range overrides {
		override(trigger)
	}

	return trigger
}

// WithEventName sets the event the trigger listens on.
func WithEventName(eventName string) func(*models.Trigger) {
	return func(t *models.Trigger) {
		t.EventName = eventName
	}
}

// WithInstituteID scopes the trigger to one institute.
func WithInstituteID(instituteID string) func(*models.Trigger) {
	return func(t *models.Trigger) {
		t.InstituteID = instituteID
	}
}

// WithTriggerID sets a fixed trigger ID.
func WithTriggerID(id string) func(*models.Trigger) {
	return func(t *models.Trigger) {
		t.ID = id
	}
}

// WithIdempotency sets the idempotency settings blob.
func WithIdempotency(settings map[string]any) func(*models.Trigger) {
	return func(t *models.Trigger) {
		blob, err := json.Marshal(settings)
		if err != nil {
			panic(err)
		}

		t.Idempotency = blob
	}
}

// WithNodes replaces the node sequence.
func WithNodes(nodes ...*models.NodeConfig) func(*models.Trigger) {
	return func(t *models.Trigger) {
		t.Nodes = nodes
	}
}

// WithTriggerEnabled sets the trigger enabled flag.
func WithTriggerEnabled(enabled bool) func(*models.Trigger) {
	return func(t *models.Trigger) {
		t.Enabled = enabled
	}
}

// CreateTestNode builds an enabled transform node deriving one field.
func CreateTestNode(overrides ...func(*models.NodeConfig)) *models.NodeConfig {
	node := &models.NodeConfig{
		ID:   uuid.NewString(),
		Name: "Test Node",
		Kind: models.NodeKindTransform,
		Config: map[string]any{
			"mappings": []any{
				map[string]any{"target": "greeting", "expression": `"Hi " + string(user_id)`},
			},
		},
		Enabled: true,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithKind sets the node kind.
func WithKind(kind models.NodeKind) func(*models.NodeConfig) {
	return func(n *models.NodeConfig) {
		n.Kind = kind
	}
}

// WithConfig replaces the node configuration.
func WithConfig(config map[string]any) func(*models.NodeConfig) {
	return func(n *models.NodeConfig) {
		n.Config = config
	}
}

// WithRequired marks the node required so a failure aborts the run.
func WithRequired() func(*models.NodeConfig) {
	return func(n *models.NodeConfig) {
		n.Required = true
	}
}

// WithNodeEnabled sets the node enabled flag.
func WithNodeEnabled(enabled bool) func(*models.NodeConfig) {
	return func(n *models.NodeConfig) {
		n.Enabled = enabled
	}
}
