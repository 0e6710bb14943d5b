package registry

import (
	"log/slog"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/nodes/action"
	"github.com/campushq/pulse/pkg/nodes/httprequest"
	"github.com/campushq/pulse/pkg/nodes/iterator"
	"github.com/campushq/pulse/pkg/nodes/query"
	"github.com/campushq/pulse/pkg/nodes/sendemail"
	"github.com/campushq/pulse/pkg/nodes/sendwhatsapp"
	"github.com/campushq/pulse/pkg/nodes/transform"
	"github.com/campushq/pulse/pkg/protocol"
)

// Collaborators carries the external dependencies shared by the built-in node
// executors.
type Collaborators struct {
	HTTPClient  protocol.HTTPClient
	QueryRunner protocol.QueryRunner
	Notifier    protocol.Notifier
	Evaluator   expression.Evaluator
}

// NewDefaultRegistry builds a registry with all built-in node kinds wired to
// the given collaborators. The iterator factory resolves its nested operation
// through the registry itself, and the ACTION factory resolves prebuilt
// actions the same way.
func NewDefaultRegistry(logger *slog.Logger, deps Collaborators) *Registry {
	registry := NewRegistry(logger)

	registry.RegisterNodeFactory(httprequest.NewFactory(deps.HTTPClient, deps.Evaluator))
	registry.RegisterNodeFactory(query.NewFactory(deps.QueryRunner, deps.Evaluator))
	registry.RegisterNodeFactory(transform.NewFactory(deps.Evaluator))
	registry.RegisterNodeFactory(iterator.NewFactory(deps.Evaluator, registry))
	registry.RegisterNodeFactory(sendemail.NewFactory(deps.Notifier, deps.Evaluator))
	registry.RegisterNodeFactory(sendwhatsapp.NewFactory(deps.Notifier, deps.Evaluator))
	registry.RegisterNodeFactory(action.NewFactory(registry))

	return registry
}
