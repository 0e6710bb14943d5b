package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/campushq/pulse/pkg/persistence/file"
	"github.com/campushq/pulse/pkg/persistence/postgresql"
	"github.com/campushq/pulse/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

// NewKeyStore picks the idempotency reservation store. A dedicated Redis URL
// takes precedence over the persistence-backed store.
func NewKeyStore(store persistence.Persistence, redisURL string) (idempotency.KeyStore, error) {
	if redisURL == "" {
		return store.Keys(), nil
	}

	return redis.NewKeyStoreFromURL(redisURL)
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
