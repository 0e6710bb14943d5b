package httprequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

// Response bodies recorded into execution details are truncated to this size.
const maxRecordedBody = 4096

// Executor performs one HTTP call per invocation. Transport and non-2xx
// failures are recorded outcomes, not returned errors; the orchestrator
// decides escalation from the node's required flag.
type Executor struct {
	node      *models.NodeConfig
	config    Config
	client    protocol.HTTPClient
	evaluator expression.Evaluator
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindHTTPRequest
}

func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)
	detail.TotalItems = 1

	body := e.config.Body

	if e.config.BodyExpression != "" {
		rendered, err := e.evaluator.EvalString(e.config.BodyExpression, runCtx)
		if err != nil {
			detail.Fail(models.ErrorTypeEvaluation, fmt.Sprintf("body expression: %v", err))
			detail.FailureCount = 1

			return detail.Finish(start, runCtx), nil, nil
		}

		body = rendered
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := e.client.Do(callCtx, protocol.HTTPRequest{
		Method:  e.config.Method,
		URL:     e.config.URL,
		Headers: e.config.Headers,
		Body:    body,
	})
	if err != nil {
		errType := models.ErrorTypeTransport
		if errors.Is(err, context.DeadlineExceeded) {
			errType = models.ErrorTypeTimeout
		}

		detail.Fail(errType, err.Error())
		detail.FailureCount = 1
		detail.Payload = map[string]any{
			"method": e.config.Method,
			"url":    e.config.URL,
		}

		return detail.Finish(start, runCtx), nil, nil
	}

	recordedBody := resp.Body
	if len(recordedBody) > maxRecordedBody {
		recordedBody = recordedBody[:maxRecordedBody]
	}

	detail.Payload = map[string]any{
		"method":      e.config.Method,
		"url":         e.config.URL,
		"status_code": resp.StatusCode,
		"body":        recordedBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail.Fail(models.ErrorTypeHTTPStatus, fmt.Sprintf("HTTP %d", resp.StatusCode))
		detail.FailureCount = 1

		return detail.Finish(start, runCtx), nil, nil
	}

	detail.SuccessCount = 1

	delta := map[string]any{}

	if e.config.ResultKey != "" {
		delta[e.config.ResultKey] = map[string]any{
			"status_code": resp.StatusCode,
			"body":        resp.Body,
			"headers":     resp.Headers,
		}
	}

	if e.config.Condition != "" {
		env := runCtx.Clone()
		env["response"] = map[string]any{
			"status_code": resp.StatusCode,
			"body":        resp.Body,
		}

		passed, err := e.evaluator.EvalBool(e.config.Condition, env)
		if err != nil {
			// Evaluator failure is a node error per the error taxonomy.
			detail.Fail(models.ErrorTypeEvaluation, fmt.Sprintf("post-condition: %v", err))

			return detail.Finish(start, runCtx), delta, nil
		}

		detail.Payload["condition_result"] = passed

		conditionKey := e.config.ResultKey
		if conditionKey == "" {
			conditionKey = e.node.ID
		}

		delta[conditionKey+"_condition"] = passed
	}

	out := runCtx.Clone()
	out.Merge(delta)

	return detail.Finish(start, out), delta, nil
}
