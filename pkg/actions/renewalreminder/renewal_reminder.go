// Package renewalreminder implements the membership-expiry reminder prebuilt
// action. Enrollment records are grouped by remaining-days bucket, each bucket
// mapped to a template variant, with one batched email call per group and a
// per-recipient WhatsApp fan-out.
package renewalreminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

const ActionKey = "membership_renewal_reminder"

type Action struct {
	logger    *slog.Logger
	notifier  protocol.Notifier
	evaluator expression.Evaluator
}

func New(logger *slog.Logger, notifier protocol.Notifier, evaluator expression.Evaluator) *Action {
	return &Action{
		logger:    logger.With("module", "renewalreminder"),
		notifier:  notifier,
		evaluator: evaluator,
	}
}

func (a *Action) Key() string {
	return ActionKey
}

type settings struct {
	collection      string
	daysField       string
	emailField      string
	phoneField      string
	subject         string
	templates       map[int]string
	whatsAppBody    string
	includeWhatsApp bool
}

func parseSettings(config map[string]any) (settings, error) {
	s := settings{
		daysField:  "days_remaining",
		emailField: "email",
		phoneField: "phone_number",
		templates:  make(map[int]string),
	}

	collection, ok := config["collection"].(string)
	if !ok || collection == "" {
		return s, fmt.Errorf("missing required field 'collection'")
	}

	s.collection = collection

	templates, ok := config["templates"].(map[string]any)
	if !ok || len(templates) == 0 {
		return s, fmt.Errorf("missing required field 'templates'")
	}

	for daysKey, value := range templates {
		days, err := strconv.Atoi(daysKey)
		if err != nil {
			return s, fmt.Errorf("template bucket %q is not a day count: %w", daysKey, err)
		}

		template, ok := value.(string)
		if !ok || template == "" {
			return s, fmt.Errorf("template for bucket %q must be a non-empty string", daysKey)
		}

		s.templates[days] = template
	}

	if daysField, ok := config["days_field"].(string); ok && daysField != "" {
		s.daysField = daysField
	}

	if emailField, ok := config["email_field"].(string); ok && emailField != "" {
		s.emailField = emailField
	}

	if phoneField, ok := config["phone_field"].(string); ok && phoneField != "" {
		s.phoneField = phoneField
	}

	if subject, ok := config["subject"].(string); ok {
		s.subject = subject
	}

	if body, ok := config["whatsapp_body_expression"].(string); ok && body != "" {
		s.whatsAppBody = body
		s.includeWhatsApp = true
	}

	return s, nil
}

// Execute dispatches reminders over both channels. Channel failures are
// isolated: a broken email batch never blocks the WhatsApp fan-out and vice
// versa. The returned success flag means dispatch was attempted, per-recipient
// outcomes live inside the channel results.
func (a *Action) Execute(ctx context.Context, config map[string]any, runCtx models.RunContext) (map[string]any, error) {
	s, err := parseSettings(config)
	if err != nil {
		return nil, err
	}

	records, err := a.resolveRecords(s, runCtx)
	if err != nil {
		return nil, err
	}

	groups := a.groupByBucket(s, records)

	emailResults := a.sendEmailGroups(ctx, s, groups)

	var whatsAppResults map[string]any
	if s.includeWhatsApp {
		whatsAppResults = a.sendWhatsAppFanOut(ctx, s, records, runCtx)
	}

	result := map[string]any{
		"total_records": len(records),
		"email_results": emailResults,
		"success":       true,
	}
	if whatsAppResults != nil {
		result["whatsapp_results"] = whatsAppResults
	}

	return result, nil
}

func (a *Action) resolveRecords(s settings, runCtx models.RunContext) ([]map[string]any, error) {
	resolved, err := a.evaluator.Eval(s.collection, runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve enrollment records %q: %w", s.collection, err)
	}

	switch v := resolved.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		records := make([]map[string]any, 0, len(v))

		for i, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d is %T, expected an object", i, item)
			}

			records = append(records, record)
		}

		return records, nil
	default:
		return nil, fmt.Errorf("records %q resolved to %T, expected a list", s.collection, resolved)
	}
}

type reminderGroup struct {
	days     int
	template string
	records  []map[string]any
}

// groupByBucket splits records by their remaining-days value. Records whose
// day count has no configured template variant are dropped from the email
// channel.
func (a *Action) groupByBucket(s settings, records []map[string]any) []reminderGroup {
	buckets := make(map[int][]map[string]any)

	for _, record := range records {
		days, ok := daysRemaining(record, s.daysField)
		if !ok {
			continue
		}

		if _, configured := s.templates[days]; !configured {
			continue
		}

		buckets[days] = append(buckets[days], record)
	}

	groups := make([]reminderGroup, 0, len(buckets))
	for days, grouped := range buckets {
		groups = append(groups, reminderGroup{
			days:     days,
			template: s.templates[days],
			records:  grouped,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].days < groups[j].days })

	return groups
}

// sendEmailGroups makes one notification call per bucket, not per recipient.
func (a *Action) sendEmailGroups(ctx context.Context, s settings, groups []reminderGroup) []map[string]any {
	results := make([]map[string]any, 0, len(groups))

	for _, group := range groups {
		recipients := make([]protocol.EmailRecipient, 0, len(group.records))

		for _, record := range group.records {
			email, _ := record[s.emailField].(string)
			if email == "" {
				continue
			}

			recipients = append(recipients, protocol.EmailRecipient{
				Email: email,
				TemplateVars: map[string]any{
					"days_remaining": group.days,
					"name":           record["name"],
				},
			})
		}

		entry := map[string]any{
			"days":            group.days,
			"template":        group.template,
			"recipient_count": len(recipients),
		}

		if len(recipients) == 0 {
			entry["skipped"] = "no addressable recipients"
			results = append(results, entry)

			continue
		}

		_, err := a.notifier.SendEmailBatch(ctx, protocol.EmailBatch{
			Template:   group.template,
			Subject:    s.subject,
			Recipients: recipients,
		})
		if err != nil {
			a.logger.Error("Reminder email batch failed",
				"template", group.template,
				"days", group.days,
				"error", err)

			entry["error"] = err.Error()
		}

		results = append(results, entry)
	}

	return results
}

func (a *Action) sendWhatsAppFanOut(ctx context.Context, s settings, records []map[string]any, runCtx models.RunContext) map[string]any {
	var sent, failed int

	failures := make([]map[string]any, 0)

	for index, record := range records {
		phone, _ := record[s.phoneField].(string)
		if phone == "" {
			continue
		}

		itemCtx := runCtx.Clone()
		itemCtx[models.ItemKey] = record

		body, err := a.evaluator.EvalString(s.whatsAppBody, itemCtx)
		if err != nil {
			failed++
			failures = append(failures, map[string]any{
				"index": index,
				"phone": phone,
				"error": err.Error(),
			})

			continue
		}

		name, _ := record["name"].(string)

		_, err = a.notifier.SendWhatsApp(ctx, protocol.WhatsAppRecipient{
			PhoneNumber: phone,
			Name:        name,
		}, body)
		if err != nil {
			failed++
			failures = append(failures, map[string]any{
				"index": index,
				"phone": phone,
				"error": err.Error(),
			})

			continue
		}

		sent++
	}

	return map[string]any{
		"sent":     sent,
		"failed":   failed,
		"failures": failures,
	}
}

func daysRemaining(record map[string]any, field string) (int, bool) {
	switch v := record[field].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
