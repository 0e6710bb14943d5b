package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/campushq/pulse/pkg/actions/renewalreminder"
	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/mocks"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/campushq/pulse/pkg/registry"
	"github.com/campushq/pulse/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRun_ActionNodeDispatchesRenewalReminder(t *testing.T) {
	logger := slog.Default()
	evaluator := expression.New()

	notifier := &mocks.MockNotifier{}
	notifier.On("SendEmailBatch", mock.Anything, mock.MatchedBy(func(batch protocol.EmailBatch) bool {
		return batch.Template == "renewal-7d" && len(batch.Recipients) == 1
	})).Return(map[string]any{"sent": 1}, nil)

	reg := registry.NewDefaultRegistry(logger, registry.Collaborators{Evaluator: evaluator})
	reg.RegisterAction(renewalreminder.New(logger, notifier, evaluator))

	keys := &mocks.MockKeyStore{}
	keys.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)

	log := &mocks.MockExecutionLog{}
	log.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	runner := NewRunner(logger, idempotency.NewFactory(logger, evaluator), keys, reg, log)

	trigger := testutil.CreateTestTrigger(
		testutil.WithEventName("membership.expiring"),
		testutil.WithNodes(testutil.CreateTestNode(
			testutil.WithKind(models.NodeKindAction),
			testutil.WithConfig(map[string]any{
				"action": renewalreminder.ActionKey,
				"config": map[string]any{
					"collection": "records",
					"templates":  map[string]any{"7": "renewal-7d"},
					"subject":    "Your membership expires soon",
				},
				"result_key": "reminder",
			}),
			testutil.WithRequired(),
		)),
	)

	result, err := runner.Run(context.Background(), trigger, trigger.EventName, "evt-1", models.RunContext{
		"records": []any{
			map[string]any{"email": "asha@example.com", "name": "Asha", "days_remaining": 7},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.NodesExecuted)

	require.Len(t, result.Details, 1)
	detail := result.Details[0]
	assert.Equal(t, models.NodeKindAction, detail.NodeKind)
	assert.Equal(t, models.NodeExecutionSuccess, detail.Status)

	reminder, ok := detail.OutputContext["reminder"].(map[string]any)
	require.True(t, ok, "action result should land in the run context")
	assert.Equal(t, 1, reminder["total_records"])
	assert.Equal(t, true, reminder["success"])

	notifier.AssertNumberOfCalls(t, "SendEmailBatch", 1)
}

func TestRun_RequiredActionFailureAbortsRun(t *testing.T) {
	logger := slog.Default()
	evaluator := expression.New()

	reg := registry.NewDefaultRegistry(logger, registry.Collaborators{Evaluator: evaluator})
	reg.RegisterAction(renewalreminder.New(logger, &mocks.MockNotifier{}, evaluator))

	keys := &mocks.MockKeyStore{}
	keys.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)

	log := &mocks.MockExecutionLog{}
	log.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	runner := NewRunner(logger, idempotency.NewFactory(logger, evaluator), keys, reg, log)

	trigger := testutil.CreateTestTrigger(
		testutil.WithNodes(testutil.CreateTestNode(
			testutil.WithKind(models.NodeKindAction),
			testutil.WithConfig(map[string]any{
				"action": renewalreminder.ActionKey,
				"config": map[string]any{
					"collection": "records",
					"templates":  map[string]any{"7": "renewal-7d"},
				},
			}),
			testutil.WithRequired(),
		)),
	)

	// The collection resolves to a scalar, so the action itself errors.
	result, err := runner.Run(context.Background(), trigger, trigger.EventName, "evt-2", models.RunContext{
		"records": "not a list",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, result.Status)
	require.Len(t, result.Details, 1)
	assert.Equal(t, models.ErrorTypeDispatch, result.Details[0].ErrorType)
}
