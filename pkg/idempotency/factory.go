package idempotency

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
)

// Factory parses, validates, and applies per-trigger idempotency settings.
type Factory struct {
	logger     *slog.Logger
	generators []Generator
}

// NewFactory builds a factory with all built-in strategy generators registered.
func NewFactory(logger *slog.Logger, evaluator expression.Evaluator) *Factory {
	return &Factory{
		logger: logger.With("module", "idempotency"),
		generators: []Generator{
			&UUIDGenerator{},
			&NoneGenerator{},
			&TimeWindowGenerator{},
			&ContextBasedGenerator{},
			&ContextTimeWindowGenerator{},
			&EventBasedGenerator{},
			NewCustomExpressionGenerator(evaluator),
		},
	}
}

// ParseSettings deserializes the trigger's settings blob. An absent, empty, or
// unparseable blob falls open to the UUID strategy: always execute, never
// deduplicate.
func (f *Factory) ParseSettings(trigger *models.Trigger) models.IdempotencySettings {
	fallback := models.IdempotencySettings{Strategy: models.StrategyUUID}

	if len(trigger.Idempotency) == 0 {
		return fallback
	}

	var settings models.IdempotencySettings

	if err := json.Unmarshal(trigger.Idempotency, &settings); err != nil {
		f.logger.Warn("Unparseable idempotency settings, falling back to UUID",
			"trigger_id", trigger.ID, "error", err)

		return fallback
	}

	if !settings.Strategy.Valid() {
		if settings.Strategy != "" {
			f.logger.Warn("Unknown idempotency strategy, falling back to UUID",
				"trigger_id", trigger.ID, "strategy", string(settings.Strategy))
		}

		return fallback
	}

	return settings
}

// ValidateSettings enforces the per-strategy required-field invariants. It
// fails fast with a descriptive error; the run must not start on violation.
func (f *Factory) ValidateSettings(settings models.IdempotencySettings) error {
	switch settings.Strategy {
	case models.StrategyNone, models.StrategyUUID:
		return nil
	case models.StrategyTimeWindow:
		if settings.TTLMinutes <= 0 {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrInvalidTTL)
		}

		return nil
	case models.StrategyContextBased:
		if len(settings.ContextFields) == 0 {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrEmptyContextFields)
		}

		return nil
	case models.StrategyContextTimeWindow:
		if settings.TTLMinutes <= 0 {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrInvalidTTL)
		}

		if len(settings.ContextFields) == 0 {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrEmptyContextFields)
		}

		return nil
	case models.StrategyEventBased:
		if !settings.IncludeEventType && !settings.IncludeEventID {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrNoEventComponent)
		}

		return nil
	case models.StrategyCustomExpression:
		if strings.TrimSpace(settings.CustomExpression) == "" {
			return fmt.Errorf("strategy %s: %w", settings.Strategy, ErrBlankCustomExpression)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, settings.Strategy)
	}
}

// Key selects the first generator supporting the settings and derives the key.
// No supporting generator is a fatal configuration error.
func (f *Factory) Key(settings models.IdempotencySettings, req Request) (string, error) {
	if req.Now.IsZero() {
		req.Now = time.Now().UTC()
	}

	for _, generator := range f.generators {
		if generator.Supports(settings) {
			return generator.Generate(settings, req)
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoGenerator, settings.Strategy)
}

// ReservationTTL returns how long a key reservation should be held. Window
// strategies expire with their window; everything else is kept indefinitely.
func (f *Factory) ReservationTTL(settings models.IdempotencySettings) time.Duration {
	switch settings.Strategy {
	case models.StrategyTimeWindow, models.StrategyContextTimeWindow:
		return time.Duration(settings.TTLMinutes) * time.Minute
	default:
		return 0
	}
}
