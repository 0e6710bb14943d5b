package file

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrigger(id, eventName string) *models.Trigger {
	settings, _ := json.Marshal(map[string]any{"strategy": "UUID"})

	return &models.Trigger{
		ID:          id,
		Name:        "Welcome flow",
		InstituteID: "inst-1",
		EventName:   eventName,
		Idempotency: settings,
		Nodes: []*models.NodeConfig{
			{
				ID:      "node-1",
				Kind:    models.NodeKindTransform,
				Config:  map[string]any{"mappings": []any{}},
				Enabled: true,
			},
		},
		Enabled: true,
	}
}

func TestTriggerRepository_RoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.Triggers().SaveTrigger(ctx, sampleTrigger("trig-1", "enrollment.created")))

	loaded, err := p.Triggers().TriggerByID(ctx, "trig-1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome flow", loaded.Name)
	assert.Equal(t, "enrollment.created", loaded.EventName)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, models.NodeKindTransform, loaded.Nodes[0].Kind)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestTriggerRepository_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Triggers().TriggerByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrTriggerNotFound)

	err = p.Triggers().DeleteTrigger(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrTriggerNotFound)
}

func TestTriggerRepository_TriggersByEvent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.Triggers().SaveTrigger(ctx, sampleTrigger("trig-1", "enrollment.created")))
	require.NoError(t, p.Triggers().SaveTrigger(ctx, sampleTrigger("trig-2", "payment.received")))

	disabled := sampleTrigger("trig-3", "enrollment.created")
	disabled.Enabled = false
	require.NoError(t, p.Triggers().SaveTrigger(ctx, disabled))

	matched, err := p.Triggers().TriggersByEvent(ctx, "enrollment.created")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "trig-1", matched[0].ID)
}

func TestKeyStore_AtomicReservation(t *testing.T) {
	store := NewKeyStore()
	ctx := context.Background()

	var wins int32

	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			reserved, err := store.Reserve(ctx, "trig-1", "key-1", 0)
			require.NoError(t, err)

			if reserved {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins)

	exists, err := store.Exists(ctx, "trig-1", "key-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestKeyStore_TTLExpiry(t *testing.T) {
	store := NewKeyStore()
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "trig-1", "key-1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Reserve(ctx, "trig-1", "key-1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, reserved)

	time.Sleep(30 * time.Millisecond)

	reserved, err = store.Reserve(ctx, "trig-1", "key-1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, reserved, "expired reservation should be reclaimable")
}

func TestExecutionLog_AppendAndRead(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	first := models.NewExecutionDetail(&models.NodeConfig{ID: "node-1", Kind: models.NodeKindHTTPRequest}, models.RunContext{})
	second := models.NewExecutionDetail(&models.NodeConfig{ID: "node-2", Kind: models.NodeKindSendEmail}, models.RunContext{})

	require.NoError(t, p.ExecutionLog().Append(ctx, "run-1", first))
	require.NoError(t, p.ExecutionLog().Append(ctx, "run-1", second))

	details, err := p.ExecutionLog().DetailsByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "node-1", details[0].NodeID)
	assert.Equal(t, "node-2", details[1].NodeID)

	empty, err := p.ExecutionLog().DetailsByRun(ctx, "run-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
