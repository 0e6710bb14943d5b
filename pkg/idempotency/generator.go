// Package idempotency derives deterministic deduplication keys for trigger
// firings and validates per-trigger idempotency settings.
package idempotency

import (
	"context"
	"time"

	"github.com/campushq/pulse/pkg/models"
)

// Request carries everything a generator may derive a key from.
type Request struct {
	Trigger   *models.Trigger
	EventName string
	EventID   string
	Context   models.RunContext
	Now       time.Time
}

// Generator produces a deterministic key for one strategy. Supports reports
// whether the generator handles the given settings; the factory picks the
// first supporting generator.
type Generator interface {
	Supports(settings models.IdempotencySettings) bool
	Generate(settings models.IdempotencySettings, req Request) (string, error)
}

// KeyStore is the persisted reservation store for idempotency keys. Reserve
// must be atomic insert-if-absent: of two near-simultaneous firings with the
// same key, exactly one observes true. A zero ttl means the reservation never
// expires.
type KeyStore interface {
	Reserve(ctx context.Context, triggerID, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, triggerID, key string) (bool, error)
}
