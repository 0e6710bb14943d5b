package events

import (
	"time"

	"github.com/campushq/pulse/pkg/models"
	"github.com/google/uuid"
)

// Run lifecycle events published by the engine for audit consumers.

type RunStarted struct {
	BaseEvent

	TriggerID string `json:"trigger_id"`
	RunID     string `json:"run_id"`
	EventName string `json:"event_name"`
	EventID   string `json:"event_id,omitempty"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	TriggerID     string `json:"trigger_id"`
	RunID         string `json:"run_id"`
	EventName     string `json:"event_name"`
	NodesExecuted int    `json:"nodes_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	TriggerID     string `json:"trigger_id"`
	RunID         string `json:"run_id"`
	EventName     string `json:"event_name"`
	NodesExecuted int    `json:"nodes_executed"`
	Error         string `json:"error"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunSuppressed struct {
	BaseEvent

	TriggerID      string `json:"trigger_id"`
	RunID          string `json:"run_id"`
	EventName      string `json:"event_name"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (e RunSuppressed) GetType() EventType {
	return RunSuppressedEvent
}

// FromRunResult builds the matching lifecycle event for a finished run.
func FromRunResult(instituteID string, result *models.RunResult) interface{ GetType() EventType } {
	base := BaseEvent{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		InstituteID: instituteID,
	}

	switch result.Status {
	case models.RunStatusFailed:
		base.Type = RunFailedEvent

		return &RunFailed{
			BaseEvent:     base,
			TriggerID:     result.TriggerID,
			RunID:         result.RunID,
			EventName:     result.EventName,
			NodesExecuted: result.NodesExecuted,
			Error:         result.Error,
			DurationMs:    result.DurationMs,
		}
	case models.RunStatusDuplicateSuppressed:
		base.Type = RunSuppressedEvent

		return &RunSuppressed{
			BaseEvent:      base,
			TriggerID:      result.TriggerID,
			RunID:          result.RunID,
			EventName:      result.EventName,
			IdempotencyKey: result.IdempotencyKey,
		}
	default:
		base.Type = RunCompletedEvent

		return &RunCompleted{
			BaseEvent:     base,
			TriggerID:     result.TriggerID,
			RunID:         result.RunID,
			EventName:     result.EventName,
			NodesExecuted: result.NodesExecuted,
			DurationMs:    result.DurationMs,
		}
	}
}
