// Package cmd provides common initialization for the command-line binaries:
// persistence, event bus, and registry wiring chosen by configuration.
package cmd

import (
	"context"
	"log/slog"

	"github.com/campushq/pulse/pkg/actions/renewalreminder"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/campushq/pulse/pkg/queryrunner"
	"github.com/campushq/pulse/pkg/registry"
)

// NewQueryRunner connects the prebuilt query catalog to the institute
// database. A file-backed persistence URL carries no SQL database, so the
// query runner is absent and QUERY nodes fail at execution time.
func NewQueryRunner(ctx context.Context, logger *slog.Logger, databaseURL string) (protocol.QueryRunner, error) {
	if parsePersistenceProvider(databaseURL) == "file" {
		return nil, nil
	}

	return queryrunner.NewFromURL(ctx, logger, databaseURL)
}

func NewRegistry(logger *slog.Logger, deps registry.Collaborators) *registry.Registry {
	reg := registry.NewDefaultRegistry(logger, deps)

	reg.RegisterAction(renewalreminder.New(logger, deps.Notifier, deps.Evaluator))

	return reg
}
