package iterator

import (
	"context"
	"testing"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noResolver struct{}

func (noResolver) Factory(models.NodeKind) (protocol.ExecutorFactory, bool) {
	return nil, false
}

// mutatingExecutor writes into a nested map of its item scope, standing in for
// a sub-node that updates shared-looking state.
type mutatingExecutor struct{}

func (mutatingExecutor) Kind() models.NodeKind { return models.NodeKindTransform }

func (mutatingExecutor) Execute(_ context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	inner := runCtx["shared"].(map[string]any)
	inner["touched_by"] = runCtx["item_index"]

	detail := models.NewExecutionDetail(&models.NodeConfig{Kind: models.NodeKindTransform}, runCtx)
	detail.SuccessCount = 1

	return detail, nil, nil
}

type mutatingFactory struct{}

func (mutatingFactory) Kind() models.NodeKind { return models.NodeKindTransform }

func (mutatingFactory) Create(context.Context, *models.NodeConfig) (protocol.NodeExecutor, error) {
	return mutatingExecutor{}, nil
}

func (mutatingFactory) Schema() map[string]any { return map[string]any{"type": "object"} }

type mutatingResolver struct{}

func (mutatingResolver) Factory(models.NodeKind) (protocol.ExecutorFactory, bool) {
	return mutatingFactory{}, true
}

func newExecutor(t *testing.T, config map[string]any) protocol.NodeExecutor {
	t.Helper()

	f := NewFactory(expression.New(), noResolver{})

	executor, err := f.Create(context.Background(), &models.NodeConfig{
		ID:      "node-iter",
		Kind:    models.NodeKindIterator,
		Config:  config,
		Enabled: true,
	})
	require.NoError(t, err)

	return executor
}

func TestFactory_Create_Validation(t *testing.T) {
	f := NewFactory(expression.New(), noResolver{})

	_, err := f.Create(context.Background(), &models.NodeConfig{
		ID:     "node-iter",
		Kind:   models.NodeKindIterator,
		Config: map[string]any{"expression": "item"},
	})
	assert.Error(t, err, "missing collection")

	_, err = f.Create(context.Background(), &models.NodeConfig{
		ID:     "node-iter",
		Kind:   models.NodeKindIterator,
		Config: map[string]any{"collection": "items"},
	})
	assert.Error(t, err, "missing per-item work")
}

func TestExecute_PerItemIsolation(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection": "items",
		"expression": "item * 2",
		"result_key": "doubled",
	})

	// Index 2 is a string: "item * 2" fails for it, succeeds for the rest.
	detail, delta, err := executor.Execute(context.Background(), models.RunContext{
		"items": []any{1, 2, "boom", 4, 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, detail.TotalItems)
	assert.Equal(t, 4, detail.SuccessCount)
	assert.Equal(t, 1, detail.FailureCount)
	assert.Equal(t, models.NodeExecutionPartial, detail.Status)

	require.Len(t, detail.FailedItems, 1)
	assert.Equal(t, 2, detail.FailedItems[0].Index)
	assert.Equal(t, "boom", detail.FailedItems[0].Item)
	assert.NotEmpty(t, detail.FailedItems[0].ErrorMessage)

	assert.Equal(t, []any{2, 4, 8, 10}, delta["doubled"])
}

func TestExecute_FailureOrderMatchesInputOrder(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection":  "items",
		"expression":  "item * 2",
		"concurrency": float64(8),
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"items": []any{1, "a", 2, "b", 3, "c"},
	})
	require.NoError(t, err)

	require.Len(t, detail.FailedItems, 3)
	assert.Equal(t, 1, detail.FailedItems[0].Index)
	assert.Equal(t, 3, detail.FailedItems[1].Index)
	assert.Equal(t, 5, detail.FailedItems[2].Index)
}

func TestExecute_AllItemsFailFailsNode(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection": "items",
		"expression": "item * 2",
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"items": []any{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionFailed, detail.Status)
	assert.Equal(t, 2, detail.FailureCount)
}

func TestExecute_EmptyCollection(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection": "items",
		"expression": "item",
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"items": []any{},
	})
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionSuccess, detail.Status)
	assert.Zero(t, detail.TotalItems)
}

func TestExecute_NonListCollectionFails(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection": "items",
		"expression": "item",
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"items": "not a list",
	})
	require.NoError(t, err)

	assert.Equal(t, models.NodeExecutionFailed, detail.Status)
}

func TestExecute_FailureListIsBounded(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection":            "items",
		"expression":            "item * 2",
		"max_failures_recorded": float64(2),
	})

	detail, _, err := executor.Execute(context.Background(), models.RunContext{
		"items": []any{"a", "b", "c", "d"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, detail.FailureCount)
	assert.Len(t, detail.FailedItems, 2)
}

func TestExecute_ItemScopesDoNotShareNestedMaps(t *testing.T) {
	f := NewFactory(expression.New(), mutatingResolver{})

	executor, err := f.Create(context.Background(), &models.NodeConfig{
		ID:   "node-iter",
		Kind: models.NodeKindIterator,
		Config: map[string]any{
			"collection":  "items",
			"operation":   map[string]any{"kind": "TRANSFORM"},
			"concurrency": float64(8),
		},
		Enabled: true,
	})
	require.NoError(t, err)

	shared := map[string]any{"status": "pending"}
	runCtx := models.RunContext{
		"items":  []any{1, 2, 3, 4, 5, 6, 7, 8},
		"shared": shared,
	}

	detail, _, err := executor.Execute(context.Background(), runCtx)
	require.NoError(t, err)

	assert.Equal(t, 8, detail.SuccessCount)
	assert.Equal(t, map[string]any{"status": "pending"}, shared)
}

func TestExecute_ItemScopeDoesNotLeak(t *testing.T) {
	executor := newExecutor(t, map[string]any{
		"collection": "items",
		"expression": "item",
	})

	runCtx := models.RunContext{"items": []any{1, 2}}

	_, _, err := executor.Execute(context.Background(), runCtx)
	require.NoError(t, err)

	_, hasItem := runCtx[models.ItemKey]
	assert.False(t, hasItem)
}
