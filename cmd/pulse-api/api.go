// Package main provides the Pulse API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/campushq/pulse/pkg/dispatch"
	"github.com/campushq/pulse/pkg/engine"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/campushq/pulse/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	runner      *engine.Runner
	pool        *dispatch.Pool
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	runner *engine.Runner,
	pool *dispatch.Pool,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		runner:      runner,
		pool:        pool,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.logger, a.persistence, a.runner, a.pool, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Pulse API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
