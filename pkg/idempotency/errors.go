package idempotency

import "errors"

var (
	// ErrNoGenerator means settings declare a strategy no registered generator
	// supports. This is a configuration error, not a retryable condition.
	ErrNoGenerator = errors.New("no idempotency generator matches the configured strategy")

	ErrInvalidTTL            = errors.New("ttl_minutes must be greater than zero for time-window strategies")
	ErrEmptyContextFields    = errors.New("context_fields must be a non-empty list for context-based strategies")
	ErrNoEventComponent      = errors.New("event-based strategy requires include_event_type or include_event_id")
	ErrBlankCustomExpression = errors.New("custom_expression must not be blank")
	ErrUnknownStrategy       = errors.New("unknown idempotency strategy")
)
