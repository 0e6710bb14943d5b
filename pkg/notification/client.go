// Package notification implements the Notifier collaborator against the
// institute notification service's HTTP API.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/pulse/pkg/protocol"
	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	logger *slog.Logger
	resty  *resty.Client
}

// NewClient builds a Notifier for the notification service at baseURL. The
// apiKey is sent as a bearer token on every call.
func NewClient(logger *slog.Logger, baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json")

	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &Client{
		logger: logger.With("module", "notification"),
		resty:  client,
	}
}

func (c *Client) SendEmailBatch(ctx context.Context, batch protocol.EmailBatch) (map[string]any, error) {
	result := map[string]any{}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(batch).
		SetResult(&result).
		Post("/v1/notifications/email/batch")
	if err != nil {
		return nil, fmt.Errorf("email batch request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("email batch rejected with status %d: %s",
			resp.StatusCode(), truncate(resp.Body()))
	}

	c.logger.Debug("Email batch dispatched",
		"template", batch.Template,
		"recipients", len(batch.Recipients))

	return result, nil
}

func (c *Client) SendWhatsApp(ctx context.Context, recipient protocol.WhatsAppRecipient, body string) (map[string]any, error) {
	result := map[string]any{}

	payload := map[string]any{
		"phone_number": recipient.PhoneNumber,
		"name":         recipient.Name,
		"body":         body,
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/v1/notifications/whatsapp")
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("whatsapp send rejected with status %d: %s",
			resp.StatusCode(), truncate(resp.Body()))
	}

	return result, nil
}

func truncate(body []byte) string {
	const maxLen = 512

	if len(body) > maxLen {
		return string(body[:maxLen])
	}

	return string(body)
}
