package sendemail

import (
	"context"
	"errors"
	"testing"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	failFor map[string]error
	batches []protocol.EmailBatch
}

func (s *stubNotifier) SendEmailBatch(_ context.Context, batch protocol.EmailBatch) (map[string]any, error) {
	s.batches = append(s.batches, batch)

	for _, recipient := range batch.Recipients {
		if err, ok := s.failFor[recipient.Email]; ok {
			return nil, err
		}
	}

	return map[string]any{"status": "queued"}, nil
}

func (s *stubNotifier) SendWhatsApp(context.Context, protocol.WhatsAppRecipient, string) (map[string]any, error) {
	return nil, errors.New("not an email notifier")
}

func newExecutor(t *testing.T, notifier protocol.Notifier, config map[string]any) protocol.NodeExecutor {
	t.Helper()

	f := NewFactory(notifier, expression.New())

	executor, err := f.Create(context.Background(), &models.NodeConfig{
		ID:      "node-email",
		Kind:    models.NodeKindSendEmail,
		Config:  config,
		Enabled: true,
	})
	require.NoError(t, err)

	return executor
}

func recipientsCtx() models.RunContext {
	return models.RunContext{
		"students": []any{
			map[string]any{"email": "a@school.test", "name": "Asha", "days_remaining": 3},
			map[string]any{"email": "b@school.test", "name": "Bilal", "days_remaining": 10},
			map[string]any{"email": "c@school.test", "name": "Chitra", "days_remaining": 1},
		},
	}
}

func TestFactory_Create_RequiredFields(t *testing.T) {
	f := NewFactory(&stubNotifier{}, expression.New())

	_, err := f.Create(context.Background(), &models.NodeConfig{
		ID:     "node-email",
		Kind:   models.NodeKindSendEmail,
		Config: map[string]any{"template": "welcome"},
	})
	assert.Error(t, err, "missing collection")

	_, err = f.Create(context.Background(), &models.NodeConfig{
		ID:     "node-email",
		Kind:   models.NodeKindSendEmail,
		Config: map[string]any{"collection": "students"},
	})
	assert.Error(t, err, "missing template")
}

func TestExecute_SendsPerRecipientWithVars(t *testing.T) {
	notifier := &stubNotifier{}
	executor := newExecutor(t, notifier, map[string]any{
		"collection": "students",
		"template":   "renewal_reminder",
		"subject":    "Your membership is expiring",
		"vars": map[string]any{
			"name": "item.name",
			"days": "item.days_remaining",
		},
	})

	detail, _, err := executor.Execute(context.Background(), recipientsCtx())
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionSuccess, detail.Status)
	assert.Equal(t, 3, detail.TotalItems)
	assert.Equal(t, 3, detail.SuccessCount)
	require.Len(t, notifier.batches, 3)
	assert.Equal(t, "a@school.test", notifier.batches[0].Recipients[0].Email)
	assert.Equal(t, "Asha", notifier.batches[0].Recipients[0].TemplateVars["name"])
	assert.Equal(t, 3, notifier.batches[0].Recipients[0].TemplateVars["days"])
}

func TestExecute_PerRecipientFailureIsolated(t *testing.T) {
	notifier := &stubNotifier{failFor: map[string]error{
		"b@school.test": errors.New("mailbox unavailable"),
	}}
	executor := newExecutor(t, notifier, map[string]any{
		"collection": "students",
		"template":   "renewal_reminder",
	})

	detail, _, err := executor.Execute(context.Background(), recipientsCtx())
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionPartial, detail.Status)
	assert.Equal(t, 2, detail.SuccessCount)
	assert.Equal(t, 1, detail.FailureCount)

	require.Len(t, detail.FailedEmails, 1)
	assert.Equal(t, 1, detail.FailedEmails[0].Index)
	assert.Equal(t, "b@school.test", detail.FailedEmails[0].Email)
	assert.Equal(t, "renewal_reminder", detail.FailedEmails[0].Template)
}

func TestExecute_SkipCondition(t *testing.T) {
	notifier := &stubNotifier{}
	executor := newExecutor(t, notifier, map[string]any{
		"collection":     "students",
		"template":       "renewal_reminder",
		"skip_condition": "item.days_remaining > 7",
	})

	detail, _, err := executor.Execute(context.Background(), recipientsCtx())
	require.NoError(t, err)

	assert.Equal(t, 1, detail.SkippedCount)
	assert.Equal(t, 2, detail.SuccessCount)
	assert.Len(t, notifier.batches, 2)
}

func TestExecute_NodeConditionFalseSkipsEverything(t *testing.T) {
	notifier := &stubNotifier{}
	executor := newExecutor(t, notifier, map[string]any{
		"collection": "students",
		"template":   "renewal_reminder",
		"condition":  "send_email",
	})

	ctx := recipientsCtx()
	ctx["send_email"] = false

	detail, _, err := executor.Execute(context.Background(), ctx)
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionSuccess, detail.Status)
	assert.Zero(t, detail.TotalItems)
	assert.Empty(t, notifier.batches)
}

func TestExecute_AllFailuresFailNode(t *testing.T) {
	notifier := &stubNotifier{failFor: map[string]error{
		"a@school.test": errors.New("down"),
		"b@school.test": errors.New("down"),
		"c@school.test": errors.New("down"),
	}}
	executor := newExecutor(t, notifier, map[string]any{
		"collection": "students",
		"template":   "renewal_reminder",
	})

	detail, _, err := executor.Execute(context.Background(), recipientsCtx())
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionFailed, detail.Status)
	assert.Equal(t, 3, detail.FailureCount)
}

func TestExecute_MissingEmailFieldRecorded(t *testing.T) {
	notifier := &stubNotifier{}
	executor := newExecutor(t, notifier, map[string]any{
		"collection": "students",
		"template":   "renewal_reminder",
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"students": []any{map[string]any{"name": "NoEmail"}},
	})
	require.NoError(t, err)

	require.Len(t, detail.FailedEmails, 1)
	assert.Equal(t, models.ErrorTypeConfig, detail.FailedEmails[0].ErrorType)
}
