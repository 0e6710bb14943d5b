package models

// RunStatus is the terminal status of one trigger run.
type RunStatus string

const (
	RunStatusCompleted           RunStatus = "COMPLETED"
	RunStatusFailed              RunStatus = "FAILED"
	RunStatusDuplicateSuppressed RunStatus = "DUPLICATE_SUPPRESSED"
)

// ItemKey is the reserved run-context key under which iterator and batch-send
// nodes expose the current element to expressions.
const ItemKey = "item"

// RunContext is the mutable key/value state threaded through a run's nodes.
// It lives for exactly one run and is never persisted directly; execution
// details carry its relevant snapshots.
type RunContext map[string]any

// Clone returns a shallow copy, used for snapshots. Nested maps and slices
// stay shared with the original.
func (c RunContext) Clone() RunContext {
	copied := make(RunContext, len(c))
	for k, v := range c {
		copied[k] = v
	}

	return copied
}

// DeepClone recursively copies nested maps and slices, so writes into the copy
// never reach the original. Iterator item scopes use this: items run
// concurrently and must not share inner maps.
func (c RunContext) DeepClone() RunContext {
	copied := make(RunContext, len(c))
	for k, v := range c {
		copied[k] = deepCopyValue(v)
	}

	return copied
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for k, inner := range typed {
			copied[k] = deepCopyValue(inner)
		}

		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, inner := range typed {
			copied[i] = deepCopyValue(inner)
		}

		return copied
	case []map[string]any:
		copied := make([]map[string]any, len(typed))
		for i, inner := range typed {
			copied[i] = deepCopyValue(inner).(map[string]any)
		}

		return copied
	default:
		return v
	}
}

// Merge writes every key of delta into the context, overwriting existing keys.
func (c RunContext) Merge(delta map[string]any) {
	for k, v := range delta {
		c[k] = v
	}
}

// RunResult is what the orchestrator returns for one fired trigger.
type RunResult struct {
	RunID          string                 `json:"run_id"`
	TriggerID      string                 `json:"trigger_id"`
	EventName      string                 `json:"event_name"`
	EventID        string                 `json:"event_id,omitempty"`
	Status         RunStatus              `json:"status"`
	IdempotencyKey string                 `json:"idempotency_key"`
	NodesExecuted  int                    `json:"nodes_executed"`
	Details        []*NodeExecutionDetail `json:"details,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DurationMs     int64                  `json:"duration_ms"`
}
