// Package web provides HTTP handlers and REST API endpoints for flow
// and execution management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/zapfy/botflow/pkg/eventbus"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/flow"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

type APIHandlers struct {
	flowService *flow.Service
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
}

func NewAPIHandlers(
	flowService *flow.Service,
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
		persistence: p,
		publisher:   publisher,
		validator:   validator,
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/flows", h.ListFlows)
	app.Post("/flows", h.CreateFlow)
	app.Get("/flows/:id", h.GetFlow)
	app.Put("/flows/:id", h.UpdateFlow)
	app.Post("/flows/:id/publish", h.PublishFlow)
	app.Post("/flows/:id/unpublish", h.UnpublishFlow)
	app.Post("/flows/:id/entries", h.EnterFlow)

	app.Get("/executions", h.ListExecutions)
	app.Get("/executions/:id", h.GetExecution)
	app.Post("/executions/:id/messages", h.ReceiveMessage)
	app.Post("/executions/:id/advance", h.AdvanceExecution)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListFlows(c fiber.Ctx) error {
	flows, err := h.flowService.List(c.Context(), c.Query("workspace_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	found, err := h.flowService.Get(c.Context(), id)
	if err != nil {
		return handleFlowError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowService.Create(c.Context(), req.WorkspaceID, flow.Definition{
		Name:        req.Name,
		EntryNodeID: req.EntryNodeID,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		return handleFlowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.flowService.Update(c.Context(), id, flow.Definition{
		Name:        req.Name,
		EntryNodeID: req.EntryNodeID,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		return handleFlowError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	published, err := h.flowService.Publish(c.Context(), id)
	if err != nil {
		return handleFlowError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) UnpublishFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	unpublished, err := h.flowService.Unpublish(c.Context(), id)
	if err != nil {
		return handleFlowError(c, err)
	}

	return c.JSON(unpublished)
}

// EnterFlow queues a flow entry dispatch for the published version. The
// worker decides whether an execution actually starts: duplicates for a
// lead already in the flow are dropped there.
func (h *APIHandlers) EnterFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req FlowEntryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	published, err := h.persistence.Flows().GetPublished(c.Context(), id)
	if err != nil {
		return handleFlowError(c, err)
	}

	event := &events.FlowEntry{
		BaseEvent:      events.NewBaseEvent(events.FlowEntryEvent, published.WorkspaceID),
		FlowID:         published.ID,
		LeadID:         req.LeadID,
		ConversationID: req.ConversationID,
		Snapshot:       req.Snapshot,
	}

	return h.accept(c, req.LeadID, event)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	statusStr := c.Query("status")
	if statusStr == "" {
		return badRequest(c, "status query parameter is required")
	}

	status := models.ExecutionStatus(statusStr)
	switch status {
	case models.ExecutionStatusRunning, models.ExecutionStatusWaiting,
		models.ExecutionStatusCompleted, models.ExecutionStatusStopped,
		models.ExecutionStatusFailed:
	default:
		return badRequest(c, "Unknown execution status: "+statusStr)
	}

	executions, err := h.persistence.Executions().ListByStatus(c.Context(), c.Query("workspace_id"), status)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// ReceiveMessage queues an inbound message dispatch. Whether it resumes
// the execution depends on its wait state, checked by the worker.
func (h *APIHandlers) ReceiveMessage(c fiber.Ctx) error {
	execution, done := h.loadExecution(c)
	if execution == nil {
		return done
	}

	var req InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = execution.ConversationID
	}

	event := &events.MessageReceived{
		BaseEvent:      events.NewBaseEvent(events.MessageReceivedEvent, execution.WorkspaceID),
		ExecutionID:    execution.ID,
		ConversationID: conversationID,
		Content:        req.Content,
	}

	return h.accept(c, execution.ID, event)
}

func (h *APIHandlers) AdvanceExecution(c fiber.Ctx) error {
	execution, done := h.loadExecution(c)
	if execution == nil {
		return done
	}

	var req AdvanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &events.ManualAdvance{
		BaseEvent:   events.NewBaseEvent(events.ManualAdvanceEvent, execution.WorkspaceID),
		ExecutionID: execution.ID,
		RequestedBy: req.RequestedBy,
	}

	return h.accept(c, execution.ID, event)
}

func (h *APIHandlers) loadExecution(c fiber.Ctx) (*models.Execution, error) {
	id := c.Params("id")
	if id == "" {
		return nil, badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, notFound(c, "Execution not found")
		}

		return nil, internalError(c, err)
	}

	return execution, nil
}

func (h *APIHandlers) accept(c fiber.Ctx, key string, event eventbus.Event) error {
	if err := h.publisher.Publish(c.Context(), key, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{
		EventID: eventID(event),
		Status:  "accepted",
	})
}

func eventID(event eventbus.Event) string {
	switch e := event.(type) {
	case *events.FlowEntry:
		return e.ID
	case *events.MessageReceived:
		return e.ID
	case *events.ManualAdvance:
		return e.ID
	default:
		return ""
	}
}
