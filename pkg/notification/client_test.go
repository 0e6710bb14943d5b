package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campushq/pulse/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmailBatch(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody protocol.EmailBatch
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"queued","batch_id":"b-1"}`))
	}))
	defer server.Close()

	client := NewClient(slog.Default(), server.URL, "secret-token")

	result, err := client.SendEmailBatch(context.Background(), protocol.EmailBatch{
		Template: "welcome",
		Subject:  "Welcome",
		Recipients: []protocol.EmailRecipient{
			{Email: "a@school.test", TemplateVars: map[string]any{"name": "Asha"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/notifications/email/batch", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "welcome", gotBody.Template)
	require.Len(t, gotBody.Recipients, 1)
	assert.Equal(t, "queued", result["status"])
}

func TestSendWhatsApp(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	defer server.Close()

	client := NewClient(slog.Default(), server.URL, "")

	result, err := client.SendWhatsApp(context.Background(), protocol.WhatsAppRecipient{
		PhoneNumber: "+911000000001",
		Name:        "Asha",
	}, "Hi Asha, your membership expires in 3 days")
	require.NoError(t, err)

	assert.Equal(t, "+911000000001", gotBody["phone_number"])
	assert.Equal(t, "Hi Asha, your membership expires in 3 days", gotBody["body"])
	assert.Equal(t, "sent", result["status"])
}

func TestSendEmailBatch_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "template not found", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(slog.Default(), server.URL, "")

	_, err := client.SendEmailBatch(context.Background(), protocol.EmailBatch{Template: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "template not found")
}
