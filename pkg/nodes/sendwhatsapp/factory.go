// Package sendwhatsapp implements the SEND_WHATSAPP node: per-recipient
// templated message dispatch with failure isolation.
package sendwhatsapp

import (
	"context"
	"errors"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Config is the parsed SEND_WHATSAPP node configuration. BodyExpression is
// evaluated once per recipient with the recipient bound to "item", producing
// the rendered message body.
type Config struct {
	Collection     string `json:"collection"`
	Template       string `json:"template,omitempty"`
	BodyExpression string `json:"body_expression"`
	PhoneField     string `json:"phone_field"`
	Condition      string `json:"condition,omitempty"`
	SkipCondition  string `json:"skip_condition,omitempty"`
}

type Factory struct {
	notifier  protocol.Notifier
	evaluator expression.Evaluator
}

func NewFactory(notifier protocol.Notifier, evaluator expression.Evaluator) *Factory {
	return &Factory{notifier: notifier, evaluator: evaluator}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindSendWhatsApp
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{PhoneField: "phone_number"}

	collection, ok := node.Config["collection"].(string)
	if !ok || collection == "" {
		return nil, errors.New("missing required field 'collection'")
	}

	cfg.Collection = collection

	body, ok := node.Config["body_expression"].(string)
	if !ok || body == "" {
		return nil, errors.New("missing required field 'body_expression'")
	}

	cfg.BodyExpression = body

	if template, ok := node.Config["template"].(string); ok {
		cfg.Template = template
	}

	if phoneField, ok := node.Config["phone_field"].(string); ok && phoneField != "" {
		cfg.PhoneField = phoneField
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
			"collection":      map[string]any{"type": "string"},
			"template":        map[string]any{"type": "string"},
			"body_expression": map[string]any{"type": "string"},
			"phone_field":     map[string]any{"type": "string"},
			"condition":       map[string]any{"type": "string"},
			"skip_condition":  map[string]any{"type": "string"},
		},
		"required": []any{"collection", "body_expression"},
	}
}
