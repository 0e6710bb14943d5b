package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/campushq/pulse/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{keys: make(map[string]struct{})}
}

func (m *memoryKeys) Reserve(_ context.Context, triggerID, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	composite := triggerID + "|" + key
	if _, ok := m.keys[composite]; ok {
		return false, nil
	}

	m.keys[composite] = struct{}{}

	return true, nil
}

func (m *memoryKeys) Exists(_ context.Context, triggerID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.keys[triggerID+"|"+key]

	return ok, nil
}

type memoryLog struct {
	mu      sync.Mutex
	details map[string][]*models.NodeExecutionDetail
}

func newMemoryLog() *memoryLog {
	return &memoryLog{details: make(map[string][]*models.NodeExecutionDetail)}
}

func (m *memoryLog) Append(_ context.Context, runID string, detail *models.NodeExecutionDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.details[runID] = append(m.details[runID], detail)

	return nil
}

// scriptedExecutor writes a delta on success or records a failure, keyed by a
// context toggle so one trigger definition can exercise both paths.
type scriptedExecutor struct {
	node    *models.NodeConfig
	failKey string
	delta   map[string]any
}

func (s *scriptedExecutor) Kind() models.NodeKind { return s.node.Kind }

func (s *scriptedExecutor) Execute(_ context.Context, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any, error) {
	start := time.Now()
	detail := models.NewExecutionDetail(s.node, runCtx)

	if s.failKey != "" {
		if fail, _ := runCtx[s.failKey].(bool); fail {
			detail.Fail(models.ErrorTypeTransport, "scripted failure")

			return detail.Finish(start, runCtx), nil, nil
		}
	}

	return detail.Finish(start, runCtx), s.delta, nil
}

type scriptedFactory struct {
	kind      models.NodeKind
	createErr error
}

func (f *scriptedFactory) Kind() models.NodeKind { return f.kind }

func (f *scriptedFactory) Schema() map[string]any { return nil }

func (f *scriptedFactory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	failKey, _ := node.Config["fail_key"].(string)
	delta, _ := node.Config["delta"].(map[string]any)

	return &scriptedExecutor{node: node, failKey: failKey, delta: delta}, nil
}

type runnerFixture struct {
	runner *Runner
	keys   *memoryKeys
	log    *memoryLog
}

func newFixture(t *testing.T, factories ...protocol.ExecutorFactory) *runnerFixture {
	t.Helper()

	logger := slog.Default()
	reg := registry.NewRegistry(logger)

	if len(factories) == 0 {
		factories = []protocol.ExecutorFactory{&scriptedFactory{kind: models.NodeKindTransform}}
	}

	for _, factory := range factories {
		reg.RegisterNodeFactory(factory)
	}

	keys := newMemoryKeys()
	executionLog := newMemoryLog()

	runner := NewRunner(
		logger,
		idempotency.NewFactory(logger, expression.New()),
		keys,
		reg,
		executionLog,
	)

	return &runnerFixture{runner: runner, keys: keys, log: executionLog}
}

func scriptedNode(id string, required bool, config map[string]any) *models.NodeConfig {
	if config == nil {
		config = map[string]any{}
	}

	return &models.NodeConfig{
		ID:       id,
		Name:     id,
		Kind:     models.NodeKindTransform,
		Config:   config,
		Required: required,
		Enabled:  true,
	}
}

func testTrigger(id string, settings map[string]any, nodes ...*models.NodeConfig) *models.Trigger {
	var blob json.RawMessage
	if settings != nil {
		blob, _ = json.Marshal(settings)
	}

	return &models.Trigger{
		ID:          id,
		Name:        id,
		InstituteID: "inst-1",
		EventName:   "enrollment.created",
		Idempotency: blob,
		Nodes:       nodes,
		Enabled:     true,
	}
}

func TestRun_CompletedThreadsContext(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1", nil,
		scriptedNode("node-1", false, map[string]any{"delta": map[string]any{"student_name": "Asha"}}),
		scriptedNode("node-2", false, nil),
	)

	result, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1", models.RunContext{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.NodesExecuted)
	require.Len(t, result.Details, 2)

	// The second node sees the first node's delta in its input snapshot.
	assert.Equal(t, "Asha", result.Details[1].InputContext["student_name"])
	assert.Len(t, fixture.log.details[result.RunID], 2)
}

func TestRun_RequiredNodeFailureAbortsRemaining(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1", nil,
		scriptedNode("node-1", false, nil),
		scriptedNode("node-2", true, map[string]any{"fail_key": "break_node_2"}),
		scriptedNode("node-3", false, nil),
	)

	result, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1",
		models.RunContext{"break_node_2": true})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Equal(t, 2, result.NodesExecuted)
	assert.Contains(t, result.Error, "node-2")

	// Node 3 never ran and exactly 2 details were persisted.
	require.Len(t, fixture.log.details[result.RunID], 2)
	assert.Equal(t, "node-2", fixture.log.details[result.RunID][1].NodeID)
}

func TestRun_BestEffortFailureContinues(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1", nil,
		scriptedNode("node-1", false, map[string]any{"fail_key": "break_node_1"}),
		scriptedNode("node-2", false, nil),
	)

	result, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1",
		models.RunContext{"break_node_1": true})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.NodesExecuted)
	assert.Equal(t, models.NodeExecutionFailed, result.Details[0].Status)
}

func TestRun_DisabledNodesSkipped(t *testing.T) {
	fixture := newFixture(t)

	disabled := scriptedNode("node-2", false, nil)
	disabled.Enabled = false

	trigger := testTrigger("trig-1", nil, scriptedNode("node-1", false, nil), disabled)

	result, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1", models.RunContext{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.NodesExecuted)
}

func TestRun_MalformedNodeConfigFailsBeforeAnyExecution(t *testing.T) {
	fixture := newFixture(t, &scriptedFactory{
		kind:      models.NodeKindTransform,
		createErr: errors.New("missing required field 'mappings'"),
	})

	trigger := testTrigger("trig-1", nil, scriptedNode("node-1", false, nil))

	_, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1", models.RunContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-1")

	// No key was reserved and nothing was logged.
	assert.Empty(t, fixture.keys.keys)
	assert.Empty(t, fixture.log.details)
}

func TestRun_InvalidIdempotencySettingsRejected(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1",
		map[string]any{"strategy": "TIME_WINDOW"},
		scriptedNode("node-1", false, nil))

	_, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1", models.RunContext{})
	require.Error(t, err)
	assert.Empty(t, fixture.log.details)
}

func TestRun_ContextBasedDeduplication(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1",
		map[string]any{
			"strategy":       "CONTEXT_BASED",
			"context_fields": []any{"user_id", "package_session_id"},
		},
		scriptedNode("node-1", false, nil))

	first, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1",
		models.RunContext{"user_id": "U1", "package_session_id": "P1"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, first.Status)

	second, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-2",
		models.RunContext{"user_id": "U1", "package_session_id": "P1"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDuplicateSuppressed, second.Status)
	assert.Zero(t, second.NodesExecuted)
	assert.Empty(t, fixture.log.details[second.RunID])

	third, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-3",
		models.RunContext{"user_id": "U1", "package_session_id": "P2"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, third.Status)
}

func TestRun_UUIDFallbackNeverDeduplicates(t *testing.T) {
	fixture := newFixture(t)

	trigger := testTrigger("trig-1", nil, scriptedNode("node-1", false, nil))

	for range 3 {
		result, err := fixture.runner.Run(context.Background(), trigger, "enrollment.created", "evt-1", models.RunContext{})
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, result.Status)
	}
}
