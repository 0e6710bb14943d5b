// Package registry maps node kinds to executor factories and prebuilt action
// keys to their implementations. The node kind set is closed: creating an
// executor for an unregistered kind is an error, never a silent no-op.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[models.NodeKind]protocol.ExecutorFactory
	actions       map[string]protocol.PrebuiltAction
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger.With("module", "registry"),
		nodeFactories: make(map[models.NodeKind]protocol.ExecutorFactory),
		actions:       make(map[string]protocol.PrebuiltAction),
	}
}

func (r *Registry) RegisterNodeFactory(factory protocol.ExecutorFactory) {
	r.nodeFactories[factory.Kind()] = factory
}

func (r *Registry) RegisterAction(action protocol.PrebuiltAction) {
	r.actions[action.Key()] = action
}

// Factory implements protocol.FactoryResolver so nested node configs, such as
// an iterator operation, resolve through the same kind table.
func (r *Registry) Factory(kind models.NodeKind) (protocol.ExecutorFactory, bool) {
	factory, ok := r.nodeFactories[kind]

	return factory, ok
}

func (r *Registry) Action(key string) (protocol.PrebuiltAction, bool) {
	action, ok := r.actions[key]

	return action, ok
}

// CreateExecutor validates the node configuration against the factory schema
// and builds the executor. Unknown kinds and schema violations are config
// errors surfaced to the caller, not recorded as execution failures.
func (r *Registry) CreateExecutor(ctx context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	factory, ok := r.nodeFactories[node.Kind]
	if !ok {
		return nil, fmt.Errorf("node kind %q not registered", node.Kind)
	}

	if err := r.validateConfig(factory, node); err != nil {
		return nil, err
	}

	return factory.Create(ctx, node)
}

func (r *Registry) validateConfig(factory protocol.ExecutorFactory, node *models.NodeConfig) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(node.Config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for node %q: %w", node.ID, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		violations = append(violations, violation.String())
	}

	r.logger.Warn("Node config rejected by schema",
		"node_id", node.ID,
		"kind", node.Kind,
		"violations", violations)

	return fmt.Errorf("invalid config for node %q (%s): %s",
		node.ID, node.Kind, strings.Join(violations, "; "))
}

// NodeKinds returns the registered kinds, for discovery endpoints.
func (r *Registry) NodeKinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.nodeFactories))
	for kind := range r.nodeFactories {
		kinds = append(kinds, kind)
	}

	return kinds
}
