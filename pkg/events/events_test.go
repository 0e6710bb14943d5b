package events

import (
	"testing"

	"github.com/campushq/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestEnrollmentCreated_RunContext(t *testing.T) {
	event := EnrollmentCreated{
		BaseEvent:        BaseEvent{InstituteID: "inst-1"},
		UserID:           "U1",
		PackageSessionID: "P1",
		Payload:          map[string]any{"package_name": "Morning Batch"},
	}

	ctx := event.RunContext()
	assert.Equal(t, "U1", ctx["user_id"])
	assert.Equal(t, "P1", ctx["package_session_id"])
	assert.Equal(t, "inst-1", ctx["institute_id"])
	assert.Equal(t, "Morning Batch", ctx["package_name"])
}

func TestMembershipExpiring_RunContext(t *testing.T) {
	event := MembershipExpiring{
		BaseEvent:     BaseEvent{InstituteID: "inst-1"},
		UserID:        "U1",
		DaysRemaining: 7,
	}

	ctx := event.RunContext()
	assert.Equal(t, 7, ctx["days_remaining"])
}

func TestFromRunResult(t *testing.T) {
	completed := FromRunResult("inst-1", &models.RunResult{
		RunID:     "run-1",
		TriggerID: "trig-1",
		Status:    models.RunStatusCompleted,
	})
	assert.Equal(t, RunCompletedEvent, completed.GetType())

	failed := FromRunResult("inst-1", &models.RunResult{
		RunID:     "run-2",
		TriggerID: "trig-1",
		Status:    models.RunStatusFailed,
		Error:     "required node failed",
	})
	assert.Equal(t, RunFailedEvent, failed.GetType())

	suppressed := FromRunResult("inst-1", &models.RunResult{
		RunID:          "run-3",
		TriggerID:      "trig-1",
		Status:         models.RunStatusDuplicateSuppressed,
		IdempotencyKey: "trig-1:c00ff",
	})
	assert.Equal(t, RunSuppressedEvent, suppressed.GetType())
}
