// Package query implements the QUERY node: a named prebuilt query or a literal
// query with bound parameters, executed through the data collaborator.
package query

import (
	"context"
	"errors"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Config is the parsed QUERY node configuration. Exactly one of Prebuilt or
// Query must be set. Param values are expressions evaluated against the run
// context at execution time.
type Config struct {
	Prebuilt  string            `json:"prebuilt,omitempty"`
	Query     string            `json:"query,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Args      []string          `json:"args,omitempty"` // Positional expressions for literal queries
	ResultKey string            `json:"result_key"`
}

type Factory struct {
	runner    protocol.QueryRunner
	evaluator expression.Evaluator
}

func NewFactory(runner protocol.QueryRunner, evaluator expression.Evaluator) *Factory {
	return &Factory{runner: runner, evaluator: evaluator}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindQuery
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{Params: make(map[string]string)}

	if prebuilt, ok := node.Config["prebuilt"].(string); ok {
		cfg.Prebuilt = prebuilt
	}

	if query, ok := node.Config["query"].(string); ok {
		cfg.Query = query
	}

	if cfg.Prebuilt == "" && cfg.Query == "" {
		return nil, errors.New("query node requires 'prebuilt' or 'query'")
	}

	if cfg.Prebuilt != "" && cfg.Query != "" {
		return nil, errors.New("query node accepts 'prebuilt' or 'query', not both")
	}

	if params, ok := node.Config["params"].(map[string]any); ok {
		for k, v := range params {
			if expr, ok := v.(string); ok {
				cfg.Params[k] = expr
			}
		}
	}

	if args, ok := node.Config["args"].([]any); ok {
		for _, arg := range args {
			if expr, ok := arg.(string); ok {
				cfg.Args = append(cfg.Args, expr)
			}
		}
	}

	resultKey, ok := node.Config["result_key"].(string)
	if !ok || resultKey == "" {
		return nil, errors.New("missing required field 'result_key'")
	}

	cfg.ResultKey = resultKey

	return &Executor{
		node:      node,
		config:    cfg,
		runner:    f.runner,
		evaluator: f.evaluator,
	}, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prebuilt": map[string]any{"type": "string"},
			"query":    map[string]any{"type": "string"},
			"params": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"args":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"result_key": map[string]any{"type": "string"},
		},
		"required": []any{"result_key"},
	}
}
