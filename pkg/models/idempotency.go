package models

// IdempotencyStrategy selects how duplicate firings of a trigger are detected.
type IdempotencyStrategy string

const (
	StrategyNone              IdempotencyStrategy = "NONE"                // Constant key, single-flight forever
	StrategyUUID              IdempotencyStrategy = "UUID"                // Fresh key per firing, never deduplicated
	StrategyTimeWindow        IdempotencyStrategy = "TIME_WINDOW"         // Firings inside one TTL window collapse
	StrategyContextBased      IdempotencyStrategy = "CONTEXT_BASED"       // Firings with equal selected context fields collapse
	StrategyContextTimeWindow IdempotencyStrategy = "CONTEXT_TIME_WINDOW" // Context and time window combined
	StrategyEventBased        IdempotencyStrategy = "EVENT_BASED"         // Same (event type, event id) collapses
	StrategyCustomExpression  IdempotencyStrategy = "CUSTOM_EXPRESSION"   // Key from an evaluated expression
)

// IdempotencySettings is the per-trigger idempotency configuration. Fields beyond
// Strategy are strategy-specific; ValidateSettings in pkg/idempotency enforces
// which are required for which strategy.
type IdempotencySettings struct {
	Strategy         IdempotencyStrategy `json:"strategy"`
	TTLMinutes       int                 `json:"ttl_minutes,omitempty"`       // TIME_WINDOW variants, > 0
	ContextFields    []string            `json:"context_fields,omitempty"`    // CONTEXT_BASED variants, non-empty
	IncludeEventType bool                `json:"include_event_type,omitempty"`
	IncludeEventID   bool                `json:"include_event_id,omitempty"`
	CustomExpression string              `json:"custom_expression,omitempty"`
}

func (s IdempotencyStrategy) Valid() bool {
	switch s {
	case StrategyNone, StrategyUUID, StrategyTimeWindow, StrategyContextBased,
		StrategyContextTimeWindow, StrategyEventBased, StrategyCustomExpression:
		return true
	}

	return false
}
