// Package protocol defines the interfaces and contracts between the run
// orchestrator, node executors, prebuilt actions, and external collaborators.
package protocol

import (
	"context"

	"github.com/campushq/pulse/pkg/models"
)

// NodeExecutor executes one configured node. Execute returns the audit detail
// for the invocation plus a context delta to merge into the run context. A
// non-nil error means the executor could not run at all (a configuration-level
// failure); ordinary execution failures are recorded inside the detail with
// Status FAILED instead of being returned.
type NodeExecutor interface {
	Kind() models.NodeKind
	Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error)
}

// ExecutorFactory creates executors for one node kind and describes the
// configuration shape it accepts.
type ExecutorFactory interface {
	// Create parses the node's raw configuration and builds an executor.
	Create(ctx context.Context, node *models.NodeConfig) (NodeExecutor, error)

	// Kind returns the node kind this factory serves.
	Kind() models.NodeKind

	// Schema returns the JSON schema for the node configuration.
	Schema() map[string]any
}

// FactoryResolver looks up the executor factory for a node kind. The registry
// implements this; the iterator node uses it to build per-item sub-executors.
type FactoryResolver interface {
	Factory(kind models.NodeKind) (ExecutorFactory, bool)
}

// PrebuiltAction is a named, multi-step bundled executor registered under a
// string key, used for recurring cross-channel notification patterns.
type PrebuiltAction interface {
	Key() string
	Execute(ctx context.Context, config map[string]any, runCtx models.RunContext) (map[string]any, error)
}

// ActionResolver looks up a prebuilt action by key. The registry implements
// this; the ACTION node uses it to dispatch the configured action.
type ActionResolver interface {
	Action(key string) (PrebuiltAction, bool)
}
