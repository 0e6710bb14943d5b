package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/campushq/pulse/pkg/cmd"
	"github.com/campushq/pulse/pkg/dispatch"
	"github.com/campushq/pulse/pkg/engine"
	"github.com/campushq/pulse/pkg/eventbus"
	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/httpclient"
	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/log"
	"github.com/campushq/pulse/pkg/notification"
	"github.com/campushq/pulse/pkg/otelhelper"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/campushq/pulse/pkg/receivers/schedule"
	"github.com/campushq/pulse/pkg/registry"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "pulse-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume domain events and execute matching triggers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for idempotency reservations (falls back to the persistence store)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "notification-url",
				Usage:   "Base URL of the notification service",
				Value:   "",
				Sources: cli.EnvVars("NOTIFICATION_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "notification-api-key",
				Usage:   "API key for the notification service",
				Value:   "",
				Sources: cli.EnvVars("NOTIFICATION_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "sweeps-file",
				Usage:   "Path to a JSON file with scheduled expiry sweep configs",
				Value:   "",
				Sources: cli.EnvVars("SWEEPS_FILE"),
			},
			&cli.IntFlag{
				Name:    "dispatch-workers",
				Usage:   "Number of concurrent trigger runs",
				Value:   4,
				Sources: cli.EnvVars("DISPATCH_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "dispatch-queue-size",
				Usage:   "Pending trigger runs before backpressure",
				Value:   64,
				Sources: cli.EnvVars("DISPATCH_QUEUE_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("pulse-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Pulse worker")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	keys, err := cmd.NewKeyStore(persistence, command.String("redis-url"))
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	queryRunner, err := cmd.NewQueryRunner(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to initialize query runner: %w", err)
	}

	evaluator := expression.New()
	notifier := notification.NewClient(logger, command.String("notification-url"), command.String("notification-api-key"))

	reg := cmd.NewRegistry(logger, registry.Collaborators{
		HTTPClient:  httpclient.New(),
		QueryRunner: queryRunner,
		Notifier:    notifier,
		Evaluator:   evaluator,
	})

	runner := engine.NewRunner(logger, idempotency.NewFactory(logger, evaluator), keys, reg, persistence.ExecutionLog())

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(ctx, "pulse-worker")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		runner.WithTracer(tracer)
	}

	eventBus := cmd.NewEventBus(command.String("event-bus"), "pulse-worker", logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if sweepsFile := command.String("sweeps-file"); sweepsFile != "" {
		receiver, err := newScheduleReceiver(logger, eventBus, queryRunner, sweepsFile)
		if err != nil {
			return err
		}

		if err := receiver.Start(ctx); err != nil {
			return fmt.Errorf("failed to start schedule receiver: %w", err)
		}

		defer func() {
			if err := receiver.Stop(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to stop schedule receiver", "error", err)
			}
		}()
	}

	pool := dispatch.NewPool(logger, command.Int("dispatch-workers"), command.Int("dispatch-queue-size"))

	worker := NewWorkerManager(workerID, persistence, eventBus, logger, runner, pool)

	if err := worker.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Worker stopped with error", "error", err)

		return err
	}

	return nil
}

func newScheduleReceiver(logger *slog.Logger, bus eventbus.EventPublisher, runner protocol.QueryRunner, sweepsFile string) (*schedule.Receiver, error) {
	if runner == nil {
		return nil, fmt.Errorf("scheduled sweeps require a SQL database, got a file persistence URL")
	}

	blob, err := os.ReadFile(sweepsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweeps file %s: %w", sweepsFile, err)
	}

	var sweeps []schedule.SweepConfig
	if err := json.Unmarshal(blob, &sweeps); err != nil {
		return nil, fmt.Errorf("failed to parse sweeps file %s: %w", sweepsFile, err)
	}

	return schedule.NewReceiver(logger, bus, runner, sweeps)
}
