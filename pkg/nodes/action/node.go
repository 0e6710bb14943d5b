package action

import (
	"context"
	"time"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

const actionTimeout = 60 * time.Second

type Executor struct {
	node   *models.NodeConfig
	config Config
	action protocol.PrebuiltAction
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindAction
}

// Execute runs the prebuilt action and merges its result map into the run
// context under the configured result key. An action error is an execution
// failure recorded in the detail, not a configuration error.
func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)
	detail.Payload = map[string]any{"action": e.config.Action}

	callCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	result, err := e.action.Execute(callCtx, e.config.Config, runCtx)
	if err != nil {
		errType := models.ErrorTypeDispatch
		if callCtx.Err() != nil {
			errType = models.ErrorTypeTimeout
		}

		detail.Fail(errType, err.Error())
		detail.FailureCount = 1

		return detail.Finish(start, runCtx), nil, nil
	}

	detail.SuccessCount = 1

	delta := map[string]any{e.config.ResultKey: result}

	out := runCtx.Clone()
	out.Merge(delta)

	return detail.Finish(start, out), delta, nil
}
