package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

const queryTimeout = 30 * time.Second

type Executor struct {
	node      *models.NodeConfig
	config    Config
	runner    protocol.QueryRunner
	evaluator expression.Evaluator
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindQuery
}

func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)

	callCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := e.runQuery(callCtx, runCtx)
	if err != nil {
		errType := models.ErrorTypeQuery
		if callCtx.Err() != nil {
			errType = models.ErrorTypeTimeout
		}

		detail.Fail(errType, err.Error())
		detail.FailureCount = 1

		return detail.Finish(start, runCtx), nil, nil
	}

	detail.TotalItems = len(rows)
	detail.SuccessCount = len(rows)
	detail.Payload = map[string]any{"row_count": len(rows)}

	delta := map[string]any{
		e.config.ResultKey:            rows,
		e.config.ResultKey + "_count": len(rows),
	}

	out := runCtx.Clone()
	out.Merge(delta)

	return detail.Finish(start, out), delta, nil
}

func (e *Executor) runQuery(ctx context.Context, runCtx models.RunContext) ([]map[string]any, error) {
	if e.config.Prebuilt != "" {
		params, err := e.resolveParams(runCtx)
		if err != nil {
			return nil, err
		}

		return e.runner.RunPrebuilt(ctx, e.config.Prebuilt, params)
	}

	args := make([]any, 0, len(e.config.Args))

	for _, expr := range e.config.Args {
		value, err := e.evaluator.Eval(expr, runCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve query arg %q: %w", expr, err)
		}

		args = append(args, value)
	}

	return e.runner.Run(ctx, e.config.Query, args)
}

func (e *Executor) resolveParams(runCtx models.RunContext) (map[string]any, error) {
	params := make(map[string]any, len(e.config.Params))

	for name, expr := range e.config.Params {
		value, err := e.evaluator.Eval(expr, runCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve query param %q: %w", name, err)
		}

		params[name] = value
	}

	return params, nil
}
