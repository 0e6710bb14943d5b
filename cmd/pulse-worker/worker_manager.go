package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushq/pulse/pkg/dispatch"
	"github.com/campushq/pulse/pkg/engine"
	"github.com/campushq/pulse/pkg/eventbus"
	"github.com/campushq/pulse/pkg/events"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/persistence"
)

const shutdownTimeout = 30 * time.Second

var domainEventTypes = []events.EventType{
	events.EnrollmentCreatedEvent,
	events.PaymentReceivedEvent,
	events.MembershipExpiringEvent,
	events.ChatMessageReceivedEvent,
}

type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	runner      *engine.Runner
	pool        *dispatch.Pool
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	runner *engine.Runner,
	pool *dispatch.Pool,
) *WorkerManager {
	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "pulse-worker", "worker_id", id),
		persistence: persistence,
		eventBus:    eventBus,
		runner:      runner,
		pool:        pool,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	for _, eventType := range domainEventTypes {
		if err := w.eventBus.Handle(eventType, w.handleDomainEvent); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return w.pool.Shutdown(shutdownCtx)
}

// handleDomainEvent fans one domain event out to every matching enabled
// trigger. Dispatch is at-least-once: an enqueue failure never aborts the
// fan-out, and the event is Nacked for redelivery only when nothing could be
// enqueued at all. Once any trigger is dispatched the handler acks, because a
// redelivery would re-run the already-dispatched triggers; idempotency keys
// suppress those re-runs only for triggers configured beyond the per-firing
// default.
func (w *WorkerManager) handleDomainEvent(ctx context.Context, event any) error {
	domainEvent, ok := event.(events.DomainEvent)
	if !ok {
		w.logger.ErrorContext(ctx, "Event does not carry a run context", "event", fmt.Sprintf("%T", event))

		return nil
	}

	eventName := string(domainEvent.GetType())
	logger := w.logger.With(
		"event_name", eventName,
		"event_id", domainEvent.GetID(),
		"institute_id", domainEvent.GetInstituteID())

	triggers, err := w.persistence.Triggers().TriggersByEvent(ctx, eventName)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up triggers", "error", err)

		return err
	}

	dispatched := 0
	failed := 0

	for _, trigger := range triggers {
		if trigger.InstituteID != "" && trigger.InstituteID != domainEvent.GetInstituteID() {
			continue
		}

		err := w.pool.Submit(func(jobCtx context.Context) error {
			return w.runTrigger(jobCtx, trigger, domainEvent)
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue trigger run",
				"trigger_id", trigger.ID,
				"error", err)

			failed++

			continue
		}

		dispatched++
	}

	logger.InfoContext(ctx, "Dispatched domain event",
		"matched", len(triggers),
		"dispatched", dispatched,
		"failed", failed)

	if failed > 0 && dispatched == 0 {
		return fmt.Errorf("failed to enqueue any of %d matching triggers", failed)
	}

	return nil
}

func (w *WorkerManager) runTrigger(ctx context.Context, trigger *models.Trigger, domainEvent events.DomainEvent) error {
	logger := w.logger.With(
		"trigger_id", trigger.ID,
		"event_id", domainEvent.GetID())

	result, err := w.runner.Run(ctx, trigger, string(domainEvent.GetType()), domainEvent.GetID(), domainEvent.RunContext())
	if err != nil {
		logger.ErrorContext(ctx, "Trigger run failed before execution", "error", err)

		return err
	}

	runEvent := events.FromRunResult(domainEvent.GetInstituteID(), result)

	if err := w.eventBus.Publish(ctx, domainEvent.GetInstituteID(), runEvent); err != nil {
		logger.ErrorContext(ctx, "Failed to publish run lifecycle event",
			"run_id", result.RunID,
			"error", err)
	}

	return nil
}
