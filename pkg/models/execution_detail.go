package models

import (
	"time"

	"github.com/google/uuid"
)

// NodeExecutionStatus is the recorded outcome of one node invocation.
type NodeExecutionStatus string

const (
	NodeExecutionSuccess NodeExecutionStatus = "SUCCESS"
	NodeExecutionPartial NodeExecutionStatus = "PARTIAL" // Some items failed, node itself completed
	NodeExecutionFailed  NodeExecutionStatus = "FAILED"
)

// Error type labels recorded in execution details.
const (
	ErrorTypeTimeout    = "TIMEOUT"
	ErrorTypeTransport  = "TRANSPORT"
	ErrorTypeHTTPStatus = "HTTP_STATUS"
	ErrorTypeEvaluation = "EVALUATION"
	ErrorTypeQuery      = "QUERY"
	ErrorTypeDispatch   = "DISPATCH"
	ErrorTypeConfig     = "CONFIG"
)

// FailedItem records one failed element of an iterator batch.
type FailedItem struct {
	Index        int            `json:"index"`
	Item         any            `json:"item"`
	ErrorMessage string         `json:"error_message"`
	ErrorType    string         `json:"error_type,omitempty"`
	Context      map[string]any `json:"context,omitempty"` // Item-scope snapshot at failure
}

// FailedEmail records one failed recipient of an email batch.
type FailedEmail struct {
	Index        int            `json:"index"`
	Email        string         `json:"email"`
	Template     string         `json:"template,omitempty"`
	TemplateVars map[string]any `json:"template_vars,omitempty"`
	ErrorMessage string         `json:"error_message"`
	ErrorType    string         `json:"error_type,omitempty"`
}

// FailedMessage records one failed WhatsApp recipient.
type FailedMessage struct {
	Index        int            `json:"index"`
	PhoneNumber  string         `json:"phone_number"`
	Template     string         `json:"template,omitempty"`
	TemplateVars map[string]any `json:"template_vars,omitempty"`
	ErrorMessage string         `json:"error_message"`
	ErrorType    string         `json:"error_type,omitempty"`
}

// NodeExecutionDetail is the append-only audit record of one node invocation.
// Created once per invocation and never mutated afterwards.
type NodeExecutionDetail struct {
	ID       string   `json:"id"`
	RunID    string   `json:"run_id"`
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`

	Status       NodeExecutionStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	ErrorType    string              `json:"error_type,omitempty"`

	InputContext  map[string]any `json:"input_context,omitempty"`
	OutputContext map[string]any `json:"output_context,omitempty"`
	NodeConfig    map[string]any `json:"node_config,omitempty"`

	TotalItems   int `json:"total_items"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	SkippedCount int `json:"skipped_count"`

	// Kind-specific failure payloads; at most one list is populated.
	FailedItems    []FailedItem    `json:"failed_items,omitempty"`
	FailedEmails   []FailedEmail   `json:"failed_emails,omitempty"`
	FailedMessages []FailedMessage `json:"failed_messages,omitempty"`

	// Free-form payload for anything else a node wants audited (status codes,
	// row counts, touched fields).
	Payload map[string]any `json:"payload,omitempty"`

	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewExecutionDetail stamps a detail for one node invocation with its input
// context snapshot. Callers fill counts, payloads, and status, then Finish it.
func NewExecutionDetail(node *NodeConfig, input RunContext) *NodeExecutionDetail {
	return &NodeExecutionDetail{
		ID:           uuid.New().String(),
		NodeID:       node.ID,
		NodeKind:     node.Kind,
		NodeConfig:   node.Config,
		InputContext: input.Clone(),
		Status:       NodeExecutionSuccess,
		CreatedAt:    time.Now().UTC(),
	}
}

// Fail marks the detail as failed with the given message and type.
func (d *NodeExecutionDetail) Fail(errType, message string) *NodeExecutionDetail {
	d.Status = NodeExecutionFailed
	d.ErrorType = errType
	d.ErrorMessage = message

	return d
}

// Finish records the execution duration and the output context snapshot.
func (d *NodeExecutionDetail) Finish(start time.Time, output RunContext) *NodeExecutionDetail {
	d.DurationMs = time.Since(start).Milliseconds()
	if output != nil {
		d.OutputContext = output.Clone()
	}

	return d
}

// Failed reports whether the node as a whole failed. Partial results count as
// node success; the per-item detail carries the failures.
func (d *NodeExecutionDetail) Failed() bool {
	return d.Status == NodeExecutionFailed
}
