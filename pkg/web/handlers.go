package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/campushq/pulse/pkg/dispatch"
	"github.com/campushq/pulse/pkg/engine"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	runner      *engine.Runner
	pool        *dispatch.Pool
	validator   *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	store persistence.Persistence,
	runner *engine.Runner,
	pool *dispatch.Pool,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger.With("module", "web"),
		persistence: store,
		runner:      runner,
		pool:        pool,
		validator:   validate,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/triggers", h.ListTriggers)
	app.Post("/triggers", h.CreateTrigger)
	app.Get("/triggers/:id", h.GetTrigger)
	app.Put("/triggers/:id", h.UpdateTrigger)
	app.Delete("/triggers/:id", h.DeleteTrigger)
	app.Post("/triggers/:id/fire", h.FireTrigger)

	app.Get("/runs/:id/details", h.GetRunDetails)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListTriggers(c fiber.Ctx) error {
	triggers, err := h.persistence.Triggers().Triggers(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(triggers)
}

func (h *APIHandlers) GetTrigger(c fiber.Ctx) error {
	trigger, err := h.persistence.Triggers().TriggerByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	return c.JSON(trigger)
}

func (h *APIHandlers) CreateTrigger(c fiber.Ctx) error {
	var req CreateTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if detail, ok := validNodeKinds(req.Nodes); !ok {
		return badRequest(c, detail)
	}

	trigger, err := req.toModel(uuid.NewString())
	if err != nil {
		return badRequest(c, "Invalid idempotency settings")
	}

	if err := h.persistence.Triggers().SaveTrigger(c.Context(), trigger); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(trigger)
}

func (h *APIHandlers) UpdateTrigger(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if detail, ok := validNodeKinds(req.Nodes); !ok {
		return badRequest(c, detail)
	}

	existing, err := h.persistence.Triggers().TriggerByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.EventName != nil {
		existing.EventName = *req.EventName
	}

	if req.Idempotency != nil {
		blob, err := json.Marshal(req.Idempotency)
		if err != nil {
			return badRequest(c, "Invalid idempotency settings")
		}

		existing.Idempotency = blob
	}

	if req.Nodes != nil {
		existing.Nodes = toNodeConfigs(req.Nodes)
	}

	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	if err := h.persistence.Triggers().SaveTrigger(c.Context(), existing); err != nil {
		return internalError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteTrigger(c fiber.Ctx) error {
	err := h.persistence.Triggers().DeleteTrigger(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// FireTrigger enqueues a manual firing through the dispatch pool. The run
// itself is asynchronous; callers read its outcome from the execution log.
func (h *APIHandlers) FireTrigger(c fiber.Ctx) error {
	var req FireTriggerRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	trigger, err := h.persistence.Triggers().TriggerByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	runCtx := models.RunContext(req.Context)
	if runCtx == nil {
		runCtx = models.RunContext{}
	}

	err = h.pool.Submit(func(ctx context.Context) error {
		_, err := h.runner.Run(ctx, trigger, trigger.EventName, eventID, runCtx)

		return err
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			return tooManyRequests(c, "Dispatch queue is full, retry later")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":     "queued",
		"trigger_id": trigger.ID,
		"event_id":   eventID,
	})
}

func (h *APIHandlers) GetRunDetails(c fiber.Ctx) error {
	details, err := h.persistence.ExecutionLog().DetailsByRun(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(details)
}

func validNodeKinds(nodes []NodeRequest) (string, bool) {
	for _, node := range nodes {
		if !models.NodeKind(node.Kind).Valid() {
			return "Unknown node kind: " + node.Kind, false
		}
	}

	return "", true
}
