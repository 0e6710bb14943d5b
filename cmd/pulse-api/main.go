package main

import (
	"context"
	"fmt"
	"os"

	"github.com/campushq/pulse/pkg/cmd"
	"github.com/campushq/pulse/pkg/dispatch"
	"github.com/campushq/pulse/pkg/engine"
	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/httpclient"
	"github.com/campushq/pulse/pkg/idempotency"
	"github.com/campushq/pulse/pkg/log"
	"github.com/campushq/pulse/pkg/notification"
	"github.com/campushq/pulse/pkg/registry"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("pulse-api")

	command := &cli.Command{
		Name:                  "pulse-api",
		Usage:                 "Create and manage workflow triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
			&cli.IntFlag{
				Name:    "dispatch-workers",
				Usage:   "Number of concurrent manual trigger runs",
				Value:   2,
				Sources: cli.EnvVars("DISPATCH_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "dispatch-queue-size",
				Usage:   "Pending manual runs before requests get 429",
				Value:   32,
				Sources: cli.EnvVars("DISPATCH_QUEUE_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Pulse API")

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

			pool := dispatch.NewPool(logger, command.Int("dispatch-workers"), command.Int("dispatch-queue-size"))

			api := NewAPI(logger, persistence, runner, pool)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "API server stopped with error", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
