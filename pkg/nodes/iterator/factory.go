// Package iterator implements the ITERATOR node: a per-item operation applied
// to every element of a collection resolved from the run context, with bounded
// parallelism and per-item failure isolation.
package iterator

import (
	"context"
	"errors"
	"fmt"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

const (
	defaultConcurrency        = 1
	maxConcurrency            = 16
	defaultMaxFailuresRecorded = 25
)

// Config is the parsed ITERATOR node configuration. Exactly one of Expression
// or Operation defines the per-item work: Expression is evaluated with the
// current element bound to "item"; Operation is a nested node executed with an
// item-scoped context.
type Config struct {
	Collection          string             `json:"collection"`
	Expression          string             `json:"expression,omitempty"`
	Operation           *models.NodeConfig `json:"operation,omitempty"`
	Concurrency         int                `json:"concurrency"`
	MaxFailuresRecorded int                `json:"max_failures_recorded"`
	ResultKey           string             `json:"result_key,omitempty"`
}

type Factory struct {
	evaluator expression.Evaluator
	resolver  protocol.FactoryResolver
}

func NewFactory(evaluator expression.Evaluator, resolver protocol.FactoryResolver) *Factory {
	return &Factory{evaluator: evaluator, resolver: resolver}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindIterator
}

func (f *Factory) Create(ctx context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{
		Concurrency:         defaultConcurrency,
		MaxFailuresRecorded: defaultMaxFailuresRecorded,
	}

	collection, ok := node.Config["collection"].(string)
	if !ok || collection == "" {
		return nil, errors.New("missing required field 'collection'")
	}

	cfg.Collection = collection

	if expr, ok := node.Config["expression"].(string); ok {
		cfg.Expression = expr
	}

	if rawOp, ok := node.Config["operation"].(map[string]any); ok {
		op, err := parseOperation(node.ID, rawOp)
		if err != nil {
			return nil, err
		}

		cfg.Operation = op
	}

	if cfg.Expression == "" && cfg.Operation == nil {
		return nil, errors.New("iterator node requires 'expression' or 'operation'")
	}

	if cfg.Expression != "" && cfg.Operation != nil {
		return nil, errors.New("iterator node accepts 'expression' or 'operation', not both")
	}

	if concurrency, ok := node.Config["concurrency"].(float64); ok {
		if concurrency < 1 || concurrency > maxConcurrency {
			return nil, fmt.Errorf("concurrency must be between 1 and %d", maxConcurrency)
		}

		cfg.Concurrency = int(concurrency)
	}

	if maxFailures, ok := node.Config["max_failures_recorded"].(float64); ok && maxFailures > 0 {
		cfg.MaxFailuresRecorded = int(maxFailures)
	}

	if resultKey, ok := node.Config["result_key"].(string); ok {
		cfg.ResultKey = resultKey
	}

	executor := &Executor{
		node:      node,
		config:    cfg,
		evaluator: f.evaluator,
	}

	// Build the sub-executor factory up front so configuration errors in the
	// nested operation surface before the run starts.
	if cfg.Operation != nil {
		subFactory, ok := f.resolver.Factory(cfg.Operation.Kind)
		if !ok {
			return nil, fmt.Errorf("iterator operation kind %q is not registered", cfg.Operation.Kind)
		}

		sub, err := subFactory.Create(ctx, cfg.Operation)
		if err != nil {
			return nil, fmt.Errorf("invalid iterator operation config: %w", err)
		}

		executor.sub = sub
	}

	return executor, nil
}

func parseOperation(parentID string, raw map[string]any) (*models.NodeConfig, error) {
	kind, _ := raw["kind"].(string)
	if kind == "" {
		return nil, errors.New("iterator operation requires 'kind'")
	}

	opConfig, _ := raw["config"].(map[string]any)

	op := &models.NodeConfig{
		ID:      parentID + ":item",
		Kind:    models.NodeKind(kind),
		Config:  opConfig,
		Enabled: true,
	}

	if !op.Kind.Valid() {
		return nil, fmt.Errorf("unknown iterator operation kind: %s", kind)
	}

	return op, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"collection": map[string]any{"type": "string"},
			"expression": map[string]any{"type": "string"},
			"operation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":   map[string]any{"type": "string"},
					"config": map[string]any{"type": "object"},
				},
				"required": []any{"kind"},
			},
			"concurrency":           map[string]any{"type": "number", "minimum": 1, "maximum": maxConcurrency},
			"max_failures_recorded": map[string]any{"type": "number", "minimum": 1},
			"result_key":            map[string]any{"type": "string"},
		},
		"required": []any{"collection"},
	}
}
