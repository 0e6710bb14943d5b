package sendemail

import (
	"context"
	"fmt"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

type Executor struct {
	node      *models.NodeConfig
	config    Config
	notifier  protocol.Notifier
	evaluator expression.Evaluator
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindSendEmail
}

// Execute resolves the recipient collection and dispatches one email per
// recipient through the notification collaborator. A failing recipient is
// recorded and never blocks the rest; the node fails only when every
// dispatched recipient fails.
func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)

	if e.config.Condition != "" {
		send, err := e.evaluator.EvalBool(e.config.Condition, runCtx)
		if err != nil {
			detail.Fail(models.ErrorTypeEvaluation, fmt.Sprintf("send condition: %v", err))

			return detail.Finish(start, runCtx), nil, nil
		}

		if !send {
			detail.Payload = map[string]any{"skipped": "send condition false"}

			return detail.Finish(start, runCtx), nil, nil
		}
	}

	recipients, err := resolveRecipients(e.evaluator, e.config.Collection, runCtx)
	if err != nil {
		detail.Fail(models.ErrorTypeEvaluation, err.Error())

		return detail.Finish(start, runCtx), nil, nil
	}

	detail.TotalItems = len(recipients)

	for index, recipient := range recipients {
		itemCtx := runCtx.Clone()
		itemCtx[models.ItemKey] = recipient

		if e.config.SkipCondition != "" {
			skip, err := e.evaluator.EvalBool(e.config.SkipCondition, itemCtx)
			if err == nil && skip {
				detail.SkippedCount++

				continue
			}
		}

		email, _ := recipient[e.config.EmailField].(string)
		if email == "" {
			detail.FailureCount++
			detail.FailedEmails = append(detail.FailedEmails, models.FailedEmail{
				Index:        index,
				Template:     e.config.Template,
				ErrorMessage: fmt.Sprintf("recipient has no %q field", e.config.EmailField),
				ErrorType:    models.ErrorTypeConfig,
			})

			continue
		}

		vars, err := e.resolveVars(itemCtx)
		if err != nil {
			detail.FailureCount++
			detail.FailedEmails = append(detail.FailedEmails, models.FailedEmail{
				Index:        index,
				Email:        email,
				Template:     e.config.Template,
				ErrorMessage: err.Error(),
				ErrorType:    models.ErrorTypeEvaluation,
			})

			continue
		}

		_, err = e.notifier.SendEmailBatch(ctx, protocol.EmailBatch{
			Template: e.config.Template,
			Subject:  e.config.Subject,
			Recipients: []protocol.EmailRecipient{
				{Email: email, TemplateVars: vars},
			},
		})
		if err != nil {
			detail.FailureCount++
			detail.FailedEmails = append(detail.FailedEmails, models.FailedEmail{
				Index:        index,
				Email:        email,
				Template:     e.config.Template,
				TemplateVars: vars,
				ErrorMessage: err.Error(),
				ErrorType:    models.ErrorTypeDispatch,
			})

			continue
		}

		detail.SuccessCount++
	}

	detail.Payload = map[string]any{
		"total_emails": detail.TotalItems,
		"template":     e.config.Template,
	}

	dispatched := detail.TotalItems - detail.SkippedCount

	switch {
	case dispatched > 0 && detail.FailureCount == dispatched:
		detail.Fail(models.ErrorTypeDispatch, "all email dispatches failed")
	case detail.FailureCount > 0:
		detail.Status = models.NodeExecutionPartial
	}

	return detail.Finish(start, runCtx), nil, nil
}

func (e *Executor) resolveVars(itemCtx models.RunContext) (map[string]any, error) {
	if len(e.config.Vars) == 0 {
		return nil, nil
	}

	vars := make(map[string]any, len(e.config.Vars))

	for name, expr := range e.config.Vars {
		value, err := e.evaluator.Eval(expr, itemCtx)
		if err != nil {
			return nil, fmt.Errorf("template var %q: %w", name, err)
		}

		vars[name] = value
	}

	return vars, nil
}

// resolveRecipients resolves a collection expression to a list of maps.
func resolveRecipients(evaluator expression.Evaluator, collection string, runCtx models.RunContext) ([]map[string]any, error) {
	resolved, err := evaluator.Eval(collection, runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients %q: %w", collection, err)
	}

	switch v := resolved.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		recipients := make([]map[string]any, 0, len(v))

		for i, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("recipient %d is %T, expected an object", i, item)
			}

			recipients = append(recipients, entry)
		}

		return recipients, nil
	default:
		return nil, fmt.Errorf("recipients %q resolved to %T, expected a list", collection, resolved)
	}
}
