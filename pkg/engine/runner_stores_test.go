package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/mocks"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/registry"
	"github.com/campushq/pulse/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStoreTestRunner(keys idempotency.KeyStore, log *mocks.MockExecutionLog) *Runner {
	logger := slog.Default()
	evaluator := expression.New()
	reg := registry.NewDefaultRegistry(logger, registry.Collaborators{Evaluator: evaluator})

	return NewRunner(logger, idempotency.NewFactory(logger, evaluator), keys, reg, log)
}

func TestRun_ReservationStoreError(t *testing.T) {
	keys := &mocks.MockKeyStore{}
	keys.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("connection refused"))

	log := &mocks.MockExecutionLog{}

	runner := newStoreTestRunner(keys, log)
	trigger := testutil.CreateTestTrigger()

	_, err := runner.Run(context.Background(), trigger, trigger.EventName, "evt-1", models.RunContext{"user_id": "U1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reserve idempotency key")

	// No node ran, nothing was logged.
	log.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_AppendFailureDoesNotAbortRun(t *testing.T) {
	keys := &mocks.MockKeyStore{}
	keys.On("Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)

	log := &mocks.MockExecutionLog{}
	log.On("Append", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	runner := newStoreTestRunner(keys, log)
	trigger := testutil.CreateTestTrigger()

	result, err := runner.Run(context.Background(), trigger, trigger.EventName, "evt-1", models.RunContext{"user_id": "U1"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.NodesExecuted)

	log.AssertNumberOfCalls(t, "Append", 1)
}
