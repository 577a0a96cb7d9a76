package web

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/enrollment"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

type APIHandlers struct {
	persistence persistence.Persistence
	enrollments *enrollment.Manager
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	p persistence.Persistence,
	enrollments *enrollment.Manager,
	publisher eventbus.EventPublisher,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		enrollments: enrollments,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With("module", "api"),
	}
}

// RegisterRoutes mounts every endpoint on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/events", h.IngestEvent)
	app.Post("/enrollments", h.CreateEnrollment)

	workflows := app.Group("/workflows")
	workflows.Get("/", h.GetWorkflows)
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Get("/:id/steps", h.GetWorkflowSteps)

	executions := app.Group("/executions")
	executions.Get("/:id", h.GetExecution)
	executions.Get("/:id/log", h.GetExecutionLog)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

// IngestEvent accepts a domain event from the platform and places it on the
// record-event topic for trigger matching.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	req := &RecordEventRequest{}
	if err := c.Bind().Body(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.RecordEventReceived{
		BaseEvent: events.NewBaseEvent(events.RecordEventReceivedEvent, ""),
		Event: models.RecordEvent{
			EventType:  req.EventType,
			TenantID:   req.TenantID,
			RecordID:   req.RecordID,
			RecordType: req.RecordType,
			Payload:    req.Payload,
			OccurredAt: time.Now().UTC(),
		},
	}

	if err := h.publisher.Publish(c.Context(), req.TenantID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// CreateEnrollment is the manual entry point. Only workflows with a manual
// trigger accept it; everything downstream follows the same enrollment policy
// as event triggers.
func (h *APIHandlers) CreateEnrollment(c fiber.Ctx) error {
	req := &ManualEnrollmentRequest{}
	if err := c.Bind().Body(req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.persistence.WorkflowByID(c.Context(), req.WorkflowID)
	if err != nil {
		return handleStorageError(c, err)
	}

	if workflow.TenantID != req.TenantID {
		return notFound(c, "workflow not found")
	}

	if workflow.EntryCondition.TriggerType != models.TriggerTypeManual {
		return unprocessable(c, "workflow does not accept manual enrollment")
	}

	result, err := h.enrollments.Enroll(c.Context(), enrollment.Request{
		Workflow:   workflow,
		TenantID:   req.TenantID,
		RecordID:   req.RecordID,
		RecordType: req.RecordType,
	})
	if err != nil {
		return internalError(c, err)
	}

	response := EnrollmentResponse{
		Enrolled:    result.Enrolled,
		Reason:      result.Reason,
		ExecutionID: result.ExecutionID,
	}

	if result.Enrolled {
		return c.Status(fiber.StatusCreated).JSON(response)
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.persistence.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowSteps(c fiber.Ctx) error {
	workflow, err := h.persistence.WorkflowByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStorageError(c, err)
	}

	steps, err := h.persistence.StepsByWorkflow(c.Context(), workflow.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"steps": steps})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.persistence.ExecutionByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStorageError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLog(c fiber.Ctx) error {
	execution, err := h.persistence.ExecutionByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleStorageError(c, err)
	}

	entries, err := h.persistence.ExecutionLog(c.Context(), execution.ID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"entries": entries})
}
