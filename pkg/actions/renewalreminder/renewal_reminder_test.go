package renewalreminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	emailErr    error
	whatsAppErr map[string]error
	batches     []protocol.EmailBatch
	messages    []string
}

func (s *stubNotifier) SendEmailBatch(_ context.Context, batch protocol.EmailBatch) (map[string]any, error) {
	s.batches = append(s.batches, batch)

	if s.emailErr != nil {
		return nil, s.emailErr
	}

	return map[string]any{"status": "queued"}, nil
}

func (s *stubNotifier) SendWhatsApp(_ context.Context, recipient protocol.WhatsAppRecipient, body string) (map[string]any, error) {
	if err, ok := s.whatsAppErr[recipient.PhoneNumber]; ok {
		return nil, err
	}

	s.messages = append(s.messages, body)

	return map[string]any{"status": "sent"}, nil
}

func enrollmentCtx() models.RunContext {
	return models.RunContext{
		"enrollments": []any{
			map[string]any{"email": "a@school.test", "phone_number": "+911000000001", "name": "Asha", "days_remaining": 7},
			map[string]any{"email": "b@school.test", "phone_number": "+911000000002", "name": "Bilal", "days_remaining": 7},
			map[string]any{"email": "c@school.test", "phone_number": "+911000000003", "name": "Chitra", "days_remaining": 1},
			map[string]any{"email": "d@school.test", "phone_number": "+911000000004", "name": "Dev", "days_remaining": 30},
		},
	}
}

func reminderConfig() map[string]any {
	return map[string]any{
		"collection": "enrollments",
		"subject":    "Membership renewal",
		"templates": map[string]any{
			"7": "renewal_7d",
			"1": "renewal_final",
		},
	}
}

func TestExecute_RequiredConfig(t *testing.T) {
	action := New(slog.Default(), &stubNotifier{}, expression.New())

	_, err := action.Execute(context.Background(), map[string]any{"templates": map[string]any{"7": "t"}}, models.RunContext{})
	assert.Error(t, err, "missing collection")

	_, err = action.Execute(context.Background(), map[string]any{"collection": "enrollments"}, models.RunContext{})
	assert.Error(t, err, "missing templates")

	_, err = action.Execute(context.Background(), map[string]any{
		"collection": "enrollments",
		"templates":  map[string]any{"soon": "t"},
	}, models.RunContext{})
	assert.Error(t, err, "bucket key must be a day count")
}

func TestExecute_OneBatchPerBucket(t *testing.T) {
	notifier := &stubNotifier{}
	action := New(slog.Default(), notifier, expression.New())

	result, err := action.Execute(context.Background(), reminderConfig(), enrollmentCtx())
	require.NoError(t, err)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, 4, result["total_records"])

	// Two configured buckets, one call each. The 30-day record has no
	// template variant and is dropped from the email channel.
	require.Len(t, notifier.batches, 2)
	assert.Equal(t, "renewal_final", notifier.batches[0].Template)
	assert.Len(t, notifier.batches[0].Recipients, 1)
	assert.Equal(t, "renewal_7d", notifier.batches[1].Template)
	assert.Len(t, notifier.batches[1].Recipients, 2)
	assert.Equal(t, 7, notifier.batches[1].Recipients[0].TemplateVars["days_remaining"])
}

func TestExecute_WhatsAppFanOutPerRecipient(t *testing.T) {
	notifier := &stubNotifier{}
	action := New(slog.Default(), notifier, expression.New())

	config := reminderConfig()
	config["whatsapp_body_expression"] = `"Hi " + item.name + ", renew soon"`

	result, err := action.Execute(context.Background(), config, enrollmentCtx())
	require.NoError(t, err)

	whatsApp, ok := result["whatsapp_results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4, whatsApp["sent"])
	assert.Equal(t, 0, whatsApp["failed"])
	require.Len(t, notifier.messages, 4)
	assert.Equal(t, "Hi Asha, renew soon", notifier.messages[0])
}

func TestExecute_ChannelFailuresIsolated(t *testing.T) {
	notifier := &stubNotifier{
		emailErr: errors.New("smtp relay down"),
		whatsAppErr: map[string]error{
			"+911000000003": errors.New("number unreachable"),
		},
	}
	action := New(slog.Default(), notifier, expression.New())

	config := reminderConfig()
	config["whatsapp_body_expression"] = `"Hi " + item.name`

	result, err := action.Execute(context.Background(), config, enrollmentCtx())
	require.NoError(t, err)

	// Dispatch was attempted on both channels, so the action still succeeds.
	assert.Equal(t, true, result["success"])

	emailResults, ok := result["email_results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, emailResults, 2)
	assert.Equal(t, "smtp relay down", emailResults[0]["error"])

	whatsApp := result["whatsapp_results"].(map[string]any)
	assert.Equal(t, 3, whatsApp["sent"])
	assert.Equal(t, 1, whatsApp["failed"])

	failures := whatsApp["failures"].([]map[string]any)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0]["index"])
	assert.Equal(t, "+911000000003", failures[0]["phone"])
}

func TestExecute_EmptyCollection(t *testing.T) {
	notifier := &stubNotifier{}
	action := New(slog.Default(), notifier, expression.New())

	result, err := action.Execute(context.Background(), reminderConfig(), models.RunContext{
		"enrollments": []any{},
	})
	require.NoError(t, err)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, 0, result["total_records"])
	assert.Empty(t, notifier.batches)
}
