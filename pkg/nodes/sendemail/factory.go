// Package sendemail implements the SEND_EMAIL node: templated email dispatch
// to a collection of recipients with per-recipient failure isolation.
package sendemail

import (
	"context"
	"errors"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Config is the parsed SEND_EMAIL node configuration. Collection resolves the
// recipient list from the run context; Vars are per-recipient expressions
// evaluated with the current recipient bound to "item".
type Config struct {
	Collection    string            `json:"collection"`
	Template      string            `json:"template"`
	Subject       string            `json:"subject,omitempty"`
	EmailField    string            `json:"email_field"`
	Vars          map[string]string `json:"vars,omitempty"`
	Condition     string            `json:"condition,omitempty"`      // Node-level send toggle
	SkipCondition string            `json:"skip_condition,omitempty"` // Per-recipient skip
}

type Factory struct {
	notifier  protocol.Notifier
	evaluator expression.Evaluator
}

func NewFactory(notifier protocol.Notifier, evaluator expression.Evaluator) *Factory {
	return &Factory{notifier: notifier, evaluator: evaluator}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindSendEmail
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{EmailField: "email", Vars: make(map[string]string)}

	collection, ok := node.Config["collection"].(string)
	if !ok || collection == "" {
		return nil, errors.New("missing required field 'collection'")
	}

	cfg.Collection = collection

	template, ok := node.Config["template"].(string)
	if !ok || template == "" {
		return nil, errors.New("missing required field 'template'")
	}

	cfg.Template = template

	if subject, ok := node.Config["subject"].(string); ok {
		cfg.Subject = subject
	}

	if emailField, ok := node.Config["email_field"].(string); ok && emailField != "" {
		cfg.EmailField = emailField
	}

	if vars, ok := node.Config["vars"].(map[string]any); ok {
		for k, v := range vars {
			if expr, ok := v.(string); ok {
				cfg.Vars[k] = expr
			}
		}
	}

	if condition, ok := node.Config["condition"].(string); ok {
		cfg.Condition = condition
	}

	if skip, ok := node.Config["skip_condition"].(string); ok {
		cfg.SkipCondition = skip
	}

	return &Executor{node: node, config: cfg, notifier: f.notifier, evaluator: f.evaluator}, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"collection":  map[string]any{"type": "string"},
			"template":    map[string]any{"type": "string"},
			"subject":     map[string]any{"type": "string"},
			"email_field": map[string]any{"type": "string"},
			"vars": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"condition":      map[string]any{"type": "string"},
			"skip_condition": map[string]any{"type": "string"},
		},
		"required": []any{"collection", "template"},
	}
}
