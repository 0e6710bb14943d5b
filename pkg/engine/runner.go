// Package engine orchestrates one trigger run: idempotency gating, ordered
// node execution with context threading, and the append-only execution log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/otelhelper"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/campushq/pulse/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Runner struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	idempotency  *idempotency.Factory
	keys         idempotency.KeyStore
	registry     *registry.Registry
	executionLog protocol.ExecutionLog
}

func NewRunner(
	logger *slog.Logger,
	idempotencyFactory *idempotency.Factory,
	keys idempotency.KeyStore,
	reg *registry.Registry,
	executionLog protocol.ExecutionLog,
) *Runner {
	return &Runner{
		logger:       logger.With("module", "engine"),
		tracer:       noop.NewTracerProvider().Tracer("engine"),
		idempotency:  idempotencyFactory,
		keys:         keys,
		registry:     reg,
		executionLog: executionLog,
	}
}

// WithTracer replaces the default no-op tracer.
func (r *Runner) WithTracer(tracer trace.Tracer) *Runner {
	r.tracer = tracer

	return r
}

type boundNode struct {
	config   *models.NodeConfig
	executor protocol.NodeExecutor
}

// Run executes one firing of a trigger. Configuration errors (invalid
// idempotency settings, malformed node config) surface before any node runs
// and before any side effect. A reservation conflict short-circuits with a
// DUPLICATE_SUPPRESSED result. Side effects of completed nodes are never
// rolled back.
func (r *Runner) Run(ctx context.Context, trigger *models.Trigger, eventName, eventID string, runCtx models.RunContext) (*models.RunResult, error) {
	start := time.Now()

	logger := r.logger.With(
		"trigger_id", trigger.ID,
		"event_name", eventName,
		"event_id", eventID)

	settings := r.idempotency.ParseSettings(trigger)
	if err := r.idempotency.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("trigger %s has invalid idempotency settings: %w", trigger.ID, err)
	}

	nodes, err := r.bindNodes(ctx, trigger)
	if err != nil {
		return nil, err
	}

	if runCtx == nil {
		runCtx = models.RunContext{}
	}

	key, err := r.idempotency.Key(settings, idempotency.Request{
		Trigger:   trigger,
		EventName: eventName,
		EventID:   eventID,
		Context:   runCtx,
		Now:       start,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to derive idempotency key for trigger %s: %w", trigger.ID, err)
	}

	result := &models.RunResult{
		RunID:          uuid.NewString(),
		TriggerID:      trigger.ID,
		EventName:      eventName,
		EventID:        eventID,
		Status:         models.RunStatusCompleted,
		IdempotencyKey: key,
	}

	logger = logger.With("run_id", result.RunID)

	reserved, err := r.keys.Reserve(ctx, trigger.ID, key, r.idempotency.ReservationTTL(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to reserve idempotency key for trigger %s: %w", trigger.ID, err)
	}

	if !reserved {
		logger.Info("Duplicate firing suppressed", "idempotency_key", key)

		result.Status = models.RunStatusDuplicateSuppressed
		result.DurationMs = time.Since(start).Milliseconds()

		return result, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "trigger.run",
		attribute.String(otelhelper.TriggerIDKey, trigger.ID),
		attribute.String(otelhelper.InstituteIDKey, trigger.InstituteID),
		attribute.String(otelhelper.EventNameKey, eventName),
		attribute.String(otelhelper.EventIDKey, eventID),
		attribute.String(otelhelper.RunIDKey, result.RunID))
	defer span.End()

	logger.Info("Starting trigger run", "nodes", len(nodes))

	for _, node := range nodes {
		detail, delta := r.executeNode(ctx, result.RunID, node, runCtx)

		if err := r.executionLog.Append(ctx, result.RunID, detail); err != nil {
			logger.Error("Failed to append execution detail",
				"node_id", node.config.ID,
				"error", err)
		}

		result.NodesExecuted++
		result.Details = append(result.Details, detail)

		runCtx.Merge(delta)

		if detail.Failed() && node.config.Required {
			result.Status = models.RunStatusFailed
			result.Error = fmt.Sprintf("required node %s failed: %s", node.config.ID, detail.ErrorMessage)

			logger.Error("Required node failed, aborting run",
				"node_id", node.config.ID,
				"error_type", detail.ErrorType)

			break
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(result.Status)))
	logger.Info("Trigger run finished",
		"status", result.Status,
		"nodes_executed", result.NodesExecuted,
		"duration_ms", result.DurationMs)

	return result, nil
}

// bindNodes creates every enabled node executor before anything runs, so a
// malformed node config fails the firing without partial side effects.
func (r *Runner) bindNodes(ctx context.Context, trigger *models.Trigger) ([]boundNode, error) {
	nodes := make([]boundNode, 0, len(trigger.Nodes))

	for _, config := range trigger.Nodes {
		if !config.Enabled {
			continue
		}

		executor, err := r.registry.CreateExecutor(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("trigger %s node %s: %w", trigger.ID, config.ID, err)
		}

		nodes = append(nodes, boundNode{config: config, executor: executor})
	}

	return nodes, nil
}

func (r *Runner) executeNode(ctx context.Context, runID string, node boundNode, runCtx models.RunContext) (*models.NodeExecutionDetail, map[string]any) {
	start := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "node.execute",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.NodeIDKey, node.config.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.config.Kind)))
	defer span.End()

	detail, delta, err := node.executor.Execute(ctx, runCtx)
	if err != nil {
		// Executors report execution failures inside the detail; an error
		// here means the node could not run at all.
		detail = models.NewExecutionDetail(node.config, runCtx).
			Fail(models.ErrorTypeConfig, err.Error()).
			Finish(start, runCtx)
	}

	detail.RunID = runID

	if len(delta) > 0 {
		merged := runCtx.Clone()
		merged.Merge(delta)
		detail.OutputContext = merged
	}

	span.SetAttributes(attribute.String(otelhelper.NodeStatusKey, string(detail.Status)))

	if detail.Failed() {
		otelhelper.SetError(span, fmt.Errorf("%s: %s", detail.ErrorType, detail.ErrorMessage))
	}

	return detail, delta
}
