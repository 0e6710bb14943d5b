package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/google/uuid"
)

// UUIDGenerator returns a fresh random key every call, which effectively
// disables deduplication. It is also the fail-open fallback strategy.
type UUIDGenerator struct{}

func (g *UUIDGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyUUID
}

func (g *UUIDGenerator) Generate(_ models.IdempotencySettings, req Request) (string, error) {
	return req.Trigger.ID + ":" + uuid.New().String(), nil
}

// NoneGenerator returns a constant key per trigger: once a run has been
// reserved, every later firing is a duplicate.
type NoneGenerator struct{}

func (g *NoneGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyNone
}

func (g *NoneGenerator) Generate(_ models.IdempotencySettings, req Request) (string, error) {
	return req.Trigger.ID + ":single-flight", nil
}

// TimeWindowGenerator collapses all firings inside one TTL window to the same key.
type TimeWindowGenerator struct{}

func (g *TimeWindowGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyTimeWindow
}

func (g *TimeWindowGenerator) Generate(settings models.IdempotencySettings, req Request) (string, error) {
	return fmt.Sprintf("%s:w%d", req.Trigger.ID, windowIndex(settings, req)), nil
}

// ContextBasedGenerator collapses firings whose configured context fields carry
// equal values.
type ContextBasedGenerator struct{}

func (g *ContextBasedGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyContextBased
}

func (g *ContextBasedGenerator) Generate(settings models.IdempotencySettings, req Request) (string, error) {
	return req.Trigger.ID + ":c" + contextDigest(settings.ContextFields, req.Context), nil
}

// ContextTimeWindowGenerator is the union of context-based and time-window:
// same selected context values inside the same window collapse.
type ContextTimeWindowGenerator struct{}

func (g *ContextTimeWindowGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyContextTimeWindow
}

func (g *ContextTimeWindowGenerator) Generate(settings models.IdempotencySettings, req Request) (string, error) {
	return fmt.Sprintf("%s:c%s:w%d",
		req.Trigger.ID,
		contextDigest(settings.ContextFields, req.Context),
		windowIndex(settings, req),
	), nil
}

// EventBasedGenerator incorporates event type and/or event id per the include
// flags, collapsing firings of the same logical event.
type EventBasedGenerator struct{}

func (g *EventBasedGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyEventBased
}

func (g *EventBasedGenerator) Generate(settings models.IdempotencySettings, req Request) (string, error) {
	parts := []string{req.Trigger.ID}

	if settings.IncludeEventType {
		parts = append(parts, "t="+req.EventName)
	}

	if settings.IncludeEventID {
		parts = append(parts, "i="+req.EventID)
	}

	return strings.Join(parts, ":"), nil
}

// CustomExpressionGenerator delegates key derivation to an evaluated
// expression. The expression sees the run context at top level plus trigger
// and event metadata.
type CustomExpressionGenerator struct {
	evaluator expression.Evaluator
}

func NewCustomExpressionGenerator(evaluator expression.Evaluator) *CustomExpressionGenerator {
	return &CustomExpressionGenerator{evaluator: evaluator}
}

func (g *CustomExpressionGenerator) Supports(settings models.IdempotencySettings) bool {
	return settings.Strategy == models.StrategyCustomExpression
}

func (g *CustomExpressionGenerator) Generate(settings models.IdempotencySettings, req Request) (string, error) {
	env := make(map[string]any, len(req.Context)+3)
	for k, v := range req.Context {
		env[k] = v
	}

	env["event_name"] = req.EventName
	env["event_id"] = req.EventID
	env["trigger"] = map[string]any{
		"id":         req.Trigger.ID,
		"name":       req.Trigger.Name,
		"event_name": req.Trigger.EventName,
	}

	key, err := g.evaluator.EvalString(settings.CustomExpression, env)
	if err != nil {
		return "", fmt.Errorf("custom expression key derivation failed: %w", err)
	}

	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("custom expression %q produced an empty key", settings.CustomExpression)
	}

	return req.Trigger.ID + ":x" + key, nil
}

// windowIndex floors the current time into a TTL-sized bucket.
func windowIndex(settings models.IdempotencySettings, req Request) int64 {
	return req.Now.Unix() / (int64(settings.TTLMinutes) * 60)
}

// contextDigest produces a stable digest of only the configured fields. Fields
// are sorted so key order in the settings blob does not matter; values are
// JSON-encoded so nested structures digest deterministically enough for maps
// produced by the same event payload.
func contextDigest(fields []string, runCtx models.RunContext) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	var b strings.Builder

	for _, field := range sorted {
		value := runCtx[field]

		encoded, err := json.Marshal(value)
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", value))
		}

		b.WriteString(field)
		b.WriteByte('=')
		b.Write(encoded)
		b.WriteByte('|')
	}

	sum := sha256.Sum256([]byte(b.String()))

	return hex.EncodeToString(sum[:16])
}
