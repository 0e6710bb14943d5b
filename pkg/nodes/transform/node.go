package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
)

type Executor struct {
	node      *models.NodeConfig
	config    Config
	evaluator expression.Evaluator
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindTransform
}

// Execute applies each mapping in order. Mappings see the effects of earlier
// mappings, so derivations can chain. A failing mapping fails the node; fields
// already derived are still reported as touched.
func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)
	detail.TotalItems = len(e.config.Mappings)

	working := gabs.Wrap(map[string]any(runCtx.Clone()))
	touched := make([]string, 0, len(e.config.Mappings))

	for _, mapping := range e.config.Mappings {
		env, _ := working.Data().(map[string]any)

		value, err := e.evaluator.Eval(mapping.Expression, env)
		if err != nil {
			detail.Fail(models.ErrorTypeEvaluation,
				fmt.Sprintf("mapping %q: %v", mapping.Target, err))
			detail.FailureCount = 1
			detail.SuccessCount = len(touched)
			detail.Payload = map[string]any{"touched_fields": touched}

			return detail.Finish(start, runCtx), nil, nil
		}

		if _, err := working.SetP(value, mapping.Target); err != nil {
			detail.Fail(models.ErrorTypeConfig,
				fmt.Sprintf("mapping %q: cannot set path: %v", mapping.Target, err))
			detail.FailureCount = 1
			detail.SuccessCount = len(touched)
			detail.Payload = map[string]any{"touched_fields": touched}

			return detail.Finish(start, runCtx), nil, nil
		}

		touched = append(touched, mapping.Target)
	}

	detail.SuccessCount = len(touched)
	detail.Payload = map[string]any{"touched_fields": touched}

	result, _ := working.Data().(map[string]any)

	delta := make(map[string]any, len(result))
	for k, v := range result {
		delta[k] = v
	}

	out := models.RunContext(result)

	return detail.Finish(start, out), delta, nil
}
