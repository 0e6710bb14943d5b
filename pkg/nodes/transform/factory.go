// Package transform implements the TRANSFORM node: declared field mappings and
// derivations applied to the run context.
package transform

import (
	"context"
	"errors"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Mapping derives one target field from an expression over the run context.
// Target supports dotted paths ("student.full_name").
type Mapping struct {
	Target     string `json:"target"`
	Expression string `json:"expression"`
}

type Config struct {
	Mappings []Mapping `json:"mappings"`
}

type Factory struct {
	evaluator expression.Evaluator
}

func NewFactory(evaluator expression.Evaluator) *Factory {
	return &Factory{evaluator: evaluator}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindTransform
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	rawMappings, ok := node.Config["mappings"].([]any)
	if !ok || len(rawMappings) == 0 {
		return nil, errors.New("transform node requires a non-empty 'mappings' list")
	}

	cfg := Config{Mappings: make([]Mapping, 0, len(rawMappings))}

	for _, raw := range rawMappings {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.New("each mapping must be an object with 'target' and 'expression'")
		}

		target, _ := entry["target"].(string)
		expr, _ := entry["expression"].(string)

		if target == "" || expr == "" {
			return nil, errors.New("each mapping must set 'target' and 'expression'")
		}

		cfg.Mappings = append(cfg.Mappings, Mapping{Target: target, Expression: expr})
	}

	return &Executor{node: node, config: cfg, evaluator: f.evaluator}, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"target":     map[string]any{"type": "string"},
						"expression": map[string]any{"type": "string"},
					},
					"required": []any{"target", "expression"},
				},
				"minItems": 1,
			},
		},
		"required": []any{"mappings"},
	}
}
