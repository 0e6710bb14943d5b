package iterator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

type Executor struct {
	node      *models.NodeConfig
	config    Config
	evaluator expression.Evaluator
	sub       protocol.NodeExecutor // Set when the per-item work is a nested node
}

// itemOutcome is the result of one element's processing, indexed by input order.
type itemOutcome struct {
	index  int
	value  any
	failed bool
	fail   models.FailedItem
}

func (e *Executor) Kind() models.NodeKind {
	return models.NodeKindIterator
}

// Execute resolves the collection and applies the per-item work to every
// element. One failing item never aborts the batch and never cancels
// siblings; the failure list is ordered by input index regardless of
// completion order. The node fails only when every item fails.
func (e *Executor) Execute(ctx context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(e.node, runCtx)

	items, err := e.resolveCollection(runCtx)
	if err != nil {
		detail.Fail(models.ErrorTypeEvaluation, err.Error())

		return detail.Finish(start, runCtx), nil, nil
	}

	detail.TotalItems = len(items)

	if len(items) == 0 {
		detail.Payload = map[string]any{"summary": "empty collection"}

		return detail.Finish(start, runCtx), nil, nil
	}

	outcomes := make([]itemOutcome, len(items))

	var wg sync.WaitGroup

	sem := make(chan struct{}, e.config.Concurrency)

	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}

		go func(index int, element any) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[index] = e.processItem(ctx, runCtx, index, element)
		}(i, item)
	}

	wg.Wait()

	values := make([]any, 0, len(items))

	for _, outcome := range outcomes {
		if outcome.failed {
			detail.FailureCount++

			if len(detail.FailedItems) < e.config.MaxFailuresRecorded {
				detail.FailedItems = append(detail.FailedItems, outcome.fail)
			}

			continue
		}

		detail.SuccessCount++
		values = append(values, outcome.value)
	}

	detail.Payload = map[string]any{
		"summary": fmt.Sprintf("%d total, %d succeeded, %d failed",
			detail.TotalItems, detail.SuccessCount, detail.FailureCount),
	}

	switch {
	case detail.FailureCount == detail.TotalItems:
		detail.Fail(models.ErrorTypeDispatch, "all items failed")
	case detail.FailureCount > 0:
		detail.Status = models.NodeExecutionPartial
	}

	var delta map[string]any

	if e.config.ResultKey != "" && !detail.Failed() {
		delta = map[string]any{e.config.ResultKey: values}
	}

	out := runCtx.Clone()
	out.Merge(delta)

	return detail.Finish(start, out), delta, nil
}

// processItem runs one element in an item-scoped context copy. Item scopes are
// isolated: nothing an item writes leaks back into the shared run context. The
// copy is deep because items run concurrently and a nested sub-node may write
// into inner maps.
func (e *Executor) processItem(ctx context.Context, runCtx models.RunContext, index int, element any) itemOutcome {
	itemCtx := runCtx.DeepClone()
	itemCtx[models.ItemKey] = element
	itemCtx["item_index"] = index

	if e.sub != nil {
		subDetail, _, err := e.sub.Execute(ctx, itemCtx)
		if err != nil {
			return failedOutcome(index, element, itemCtx, models.ErrorTypeConfig, err.Error())
		}

		if subDetail.Failed() {
			return failedOutcome(index, element, itemCtx, subDetail.ErrorType, subDetail.ErrorMessage)
		}

		return itemOutcome{index: index, value: subDetail.OutputContext}
	}

	value, err := e.evaluator.Eval(e.config.Expression, itemCtx)
	if err != nil {
		return failedOutcome(index, element, itemCtx, models.ErrorTypeEvaluation, err.Error())
	}

	return itemOutcome{index: index, value: value}
}

func failedOutcome(index int, element any, itemCtx models.RunContext, errType, message string) itemOutcome {
	return itemOutcome{
		index:  index,
		failed: true,
		fail: models.FailedItem{
			Index:        index,
			Item:         element,
			ErrorMessage: message,
			ErrorType:    errType,
			Context:      itemCtx.Clone(),
		},
	}
}

func (e *Executor) resolveCollection(runCtx models.RunContext) ([]any, error) {
	resolved, err := e.evaluator.Eval(e.config.Collection, runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection %q: %w", e.config.Collection, err)
	}

	switch v := resolved.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = item
		}

		return items, nil
	default:
		return nil, fmt.Errorf("collection %q resolved to %T, expected a list", e.config.Collection, resolved)
	}
}
