package sendwhatsapp

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
	return models.NodeKindSendWhatsApp
}

// Execute renders and dispatches one message per recipient. Failures are
// isolated per recipient and ordered by input index; the node fails only when
// every dispatched recipient fails.
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

		phone, _ := recipient[e.config.PhoneField].(string)
		if phone == "" {
			detail.FailureCount++
			detail.FailedMessages = append(detail.FailedMessages, models.FailedMessage{
				Index:        index,
				Template:     e.config.Template,
				ErrorMessage: fmt.Sprintf("recipient has no %q field", e.config.PhoneField),
				ErrorType:    models.ErrorTypeConfig,
			})

			continue
		}

		body, err := e.evaluator.EvalString(e.config.BodyExpression, itemCtx)
		if err != nil {
			detail.FailureCount++
			detail.FailedMessages = append(detail.FailedMessages, models.FailedMessage{
				Index:        index,
				PhoneNumber:  phone,
				Template:     e.config.Template,
				ErrorMessage: err.Error(),
				ErrorType:    models.ErrorTypeEvaluation,
			})

			continue
		}

		name, _ := recipient["name"].(string)

		_, err = e.notifier.SendWhatsApp(ctx, protocol.WhatsAppRecipient{
			PhoneNumber: phone,
			Name:        name,
		}, body)
		if err != nil {
			detail.FailureCount++
			detail.FailedMessages = append(detail.FailedMessages, models.FailedMessage{
				Index:        index,
				PhoneNumber:  phone,
				Template:     e.config.Template,
				ErrorMessage: err.Error(),
				ErrorType:    models.ErrorTypeDispatch,
			})

			continue
		}

		detail.SuccessCount++
	}

	detail.Payload = map[string]any{
		"total_messages": detail.TotalItems,
		"template":       e.config.Template,
	}

	dispatched := detail.TotalItems - detail.SkippedCount

	switch {
	case dispatched > 0 && detail.FailureCount == dispatched:
		detail.Fail(models.ErrorTypeDispatch, "all message dispatches failed")
	case detail.FailureCount > 0:
		detail.Status = models.NodeExecutionPartial
	}

	return detail.Finish(start, runCtx), nil, nil
}

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
