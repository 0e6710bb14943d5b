// Package action implements the ACTION node: it dispatches a registered
// prebuilt action by key and surfaces the action's result map into the run
// context.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Config is the parsed ACTION node configuration. Action is the registered
// action key; Config is handed to the action untouched. ResultKey defaults to
// the action key.
type Config struct {
	Action    string         `json:"action"`
	Config    map[string]any `json:"config,omitempty"`
	ResultKey string         `json:"result_key,omitempty"`
}

type Factory struct {
	resolver protocol.ActionResolver
}

func NewFactory(resolver protocol.ActionResolver) *Factory {
	return &Factory{resolver: resolver}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindAction
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{}

	actionKey, ok := node.Config["action"].(string)
	if !ok || actionKey == "" {
		return nil, errors.New("action node requires 'action'")
	}

	cfg.Action = actionKey

	if actionConfig, ok := node.Config["config"].(map[string]any); ok {
		cfg.Config = actionConfig
	}

	if resultKey, ok := node.Config["result_key"].(string); ok && resultKey != "" {
		cfg.ResultKey = resultKey
	} else {
		cfg.ResultKey = actionKey
	}

	prebuilt, ok := f.resolver.Action(actionKey)
	if !ok {
		return nil, fmt.Errorf("action %q not registered", actionKey)
	}

	return &Executor{node: node, config: cfg, action: prebuilt}, nil
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action":     map[string]any{"type": "string", "minLength": 1},
			"config":     map[string]any{"type": "object"},
			"result_key": map[string]any{"type": "string"},
		},
		"required": []any{"action"},
	}
}
