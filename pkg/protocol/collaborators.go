package protocol

import (
	"context"

	"github.com/campushq/pulse/pkg/models"
)

// EmailBatch is one batched email dispatch through the notification service.
type EmailBatch struct {
	Template   string           `json:"template"`
	Subject    string           `json:"subject,omitempty"`
	Recipients []EmailRecipient `json:"recipients"`
}

// EmailRecipient is one addressee with its resolved template variables.
type EmailRecipient struct {
	Email        string         `json:"email"`
	TemplateVars map[string]any `json:"template_vars,omitempty"`
}

// WhatsAppRecipient is one WhatsApp addressee.
type WhatsAppRecipient struct {
	PhoneNumber  string         `json:"phone_number"`
	Name         string         `json:"name,omitempty"`
	TemplateVars map[string]any `json:"template_vars,omitempty"`
}

// Notifier is the notification collaborator consumed by the send nodes and
// prebuilt actions. Implementations talk to the institute notification service.
type Notifier interface {
	SendEmailBatch(ctx context.Context, batch EmailBatch) (map[string]any, error)
	SendWhatsApp(ctx context.Context, recipient WhatsAppRecipient, body string) (map[string]any, error)
}

// QueryRunner executes a named prebuilt query or a literal query with bound
// parameters, returning rows as a generic list of maps.
type QueryRunner interface {
	RunPrebuilt(ctx context.Context, name string, params map[string]any) ([]map[string]any, error)
	Run(ctx context.Context, query string, params []any) ([]map[string]any, error)
}

// HTTPRequest describes one outbound HTTP call.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// HTTPResponse is the outcome of one outbound HTTP call.
type HTTPResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// HTTPClient performs outbound HTTP calls for the HTTP_REQUEST node.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// ExecutionLog is the append-only sink for node execution details.
type ExecutionLog interface {
	Append(ctx context.Context, runID string, detail *models.NodeExecutionDetail) error
}

// TriggerRepository is the read/write store for trigger configuration. The
// engine itself only reads; writes belong to the administrative API.
type TriggerRepository interface {
	Triggers(ctx context.Context) ([]*models.Trigger, error)
	TriggerByID(ctx context.Context, id string) (*models.Trigger, error)
	TriggersByEvent(ctx context.Context, eventName string) ([]*models.Trigger, error)
	SaveTrigger(ctx context.Context, trigger *models.Trigger) error
	DeleteTrigger(ctx context.Context, id string) error
}
