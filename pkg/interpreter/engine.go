// Package interpreter executes flow graphs against lead executions, one
// dispatched event at a time.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapfy/botflow/pkg/assign"
	"github.com/zapfy/botflow/pkg/clock"
	"github.com/zapfy/botflow/pkg/eventbus"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/graph"
	"github.com/zapfy/botflow/pkg/lease"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/otelhelper"
	"github.com/zapfy/botflow/pkg/persistence"
	"github.com/zapfy/botflow/pkg/protocol"
)

const (
	// DefaultMaxJumps bounds goto chains per execution.
	DefaultMaxJumps = 25

	// DefaultLeaseTTL bounds how long a crashed worker can hold an
	// execution before another may take it.
	DefaultLeaseTTL = 30 * time.Second
)

// Config tunes one engine instance.
type Config struct {
	WorkerID string
	MaxJumps int
	LeaseTTL time.Duration
}

// Dependencies are the collaborators an engine steps executions with.
type Dependencies struct {
	Persistence persistence.Persistence
	Leases      lease.Manager
	Resolver    *assign.Resolver
	Messenger   protocol.Messenger
	CRM         protocol.CRM
	Publisher   eventbus.EventPublisher
	Clock       clock.Clock
	Logger      *slog.Logger

	// Tracer defaults to the global provider's tracer when nil.
	Tracer trace.Tracer
}

// Engine is the flow interpreter. It is safe for concurrent use: the
// per-execution lease serializes writers, and compiled graphs are
// immutable and shared.
type Engine struct {
	workerID    string
	maxJumps    int
	leaseTTL    time.Duration
	persistence persistence.Persistence
	leases      lease.Manager
	resolver    *assign.Resolver
	messenger   protocol.Messenger
	crm         protocol.CRM
	publisher   eventbus.EventPublisher
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
	graphs      *graphCache
}

// NewEngine creates an interpreter engine.
func NewEngine(cfg Config, deps Dependencies) *Engine {
	if cfg.MaxJumps <= 0 {
		cfg.MaxJumps = DefaultMaxJumps
	}

	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("botflow/interpreter")
	}

	return &Engine{
		workerID:    cfg.WorkerID,
		maxJumps:    cfg.MaxJumps,
		leaseTTL:    cfg.LeaseTTL,
		persistence: deps.Persistence,
		leases:      deps.Leases,
		resolver:    deps.Resolver,
		messenger:   deps.Messenger,
		crm:         deps.CRM,
		publisher:   deps.Publisher,
		clock:       deps.Clock,
		logger:      deps.Logger.With("module", "interpreter", "worker_id", cfg.WorkerID),
		tracer:      deps.Tracer,
		graphs:      newGraphCache(maxCachedGraphs),
	}
}

// HandleFlowEntry starts a new execution for a lead entering a published
// flow. Duplicate entries for a lead with an active execution are dropped.
func (e *Engine) HandleFlowEntry(ctx context.Context, event any) error {
	entry, ok := event.(*events.FlowEntry)
	if !ok {
		e.logger.ErrorContext(ctx, "Invalid event type for FlowEntry")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "interpreter.flow_entry",
		attribute.String(otelhelper.FlowIDKey, entry.FlowID),
		attribute.String(otelhelper.LeadIDKey, entry.LeadID),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	if err := e.startExecution(ctx, entry); err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.FlowIDKey, entry.FlowID))

		return err
	}

	return nil
}

// startExecution creates, persists and runs the execution for a flow entry.
func (e *Engine) startExecution(ctx context.Context, entry *events.FlowEntry) error {
	logger := e.logger.With("flow_id", entry.FlowID, "lead_id", entry.LeadID)

	_, err := e.persistence.Executions().FindActive(ctx, entry.LeadID, entry.FlowID)
	if err == nil {
		logger.InfoContext(ctx, "Lead already has an active execution, dropping entry")

		return nil
	}

	if !persistence.IsExecutionNotFound(err) {
		return fmt.Errorf("failed to check for active execution: %w", err)
	}

	flow, err := e.persistence.Flows().GetPublished(ctx, entry.FlowID)
	if err != nil {
		if persistence.IsPublishedFlowNotFound(err) {
			logger.WarnContext(ctx, "Flow has no published version, dropping entry")

			return nil
		}

		return fmt.Errorf("failed to load published flow: %w", err)
	}

	g, err := e.compiled(flow)
	if err != nil {
		logger.ErrorContext(ctx, "Published flow failed to compile", "error", err)

		return nil
	}

	snapshot := entry.Snapshot
	if snapshot == nil {
		snapshot, err = e.crm.Snapshot(ctx, entry.LeadID)
		if err != nil {
			if errors.Is(err, protocol.ErrLeadNotFound) {
				logger.InfoContext(ctx, "Lead no longer exists, dropping entry")

				return nil
			}

			return fmt.Errorf("failed to load lead snapshot: %w", err)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate execution ID: %w", err)
	}

	now := e.clock.Now()
	execution := &models.Execution{
		ID:             id.String(),
		WorkspaceID:    entry.WorkspaceID,
		FlowID:         flow.ID,
		FlowVersion:    flow.Version,
		LeadID:         entry.LeadID,
		ConversationID: entry.ConversationID,
		CurrentNodeID:  g.Entry(),
		Status:         models.ExecutionStatusRunning,
		Snapshot:       snapshot,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	e.emit(ctx, execution, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, execution.WorkspaceID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		FlowVersion: execution.FlowVersion,
		LeadID:      execution.LeadID,
	})

	if err := e.leases.Acquire(ctx, execution.ID, e.workerID, e.leaseTTL); err != nil {
		return fmt.Errorf("failed to lease new execution: %w", err)
	}

	defer e.release(ctx, execution.ID)

	logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID, "flow_version", execution.FlowVersion)

	return e.run(ctx, execution, g)
}

// HandleMessageReceived resumes an execution waiting on an inbound
// message. Anything else is an idempotent no-op.
func (e *Engine) HandleMessageReceived(ctx context.Context, event any) error {
	msg, ok := event.(*events.MessageReceived)
	if !ok {
		e.logger.ErrorContext(ctx, "Invalid event type for MessageReceived")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "interpreter.message_received",
		attribute.String(otelhelper.ExecutionIDKey, msg.ExecutionID),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	err := e.withLease(ctx, msg.ExecutionID, func(execution *models.Execution, g *graph.Graph) error {
		if execution.Status != models.ExecutionStatusWaiting || execution.WaitKind != models.WaitKindMessage {
			e.logger.InfoContext(ctx, "Execution is not awaiting a message, dropping event",
				"execution_id", execution.ID, "status", execution.Status)

			return nil
		}

		execution.Snapshot.LastMessage = execution.Snapshot.Message
		execution.Snapshot.Message = msg.Content
		execution.Resume()

		return e.resumePastWait(ctx, execution, g)
	})
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, msg.ExecutionID))
	}

	return err
}

// HandleTimerElapsed resumes an execution whose persisted wait deadline
// has passed. Stale timers from an earlier step are dropped.
func (e *Engine) HandleTimerElapsed(ctx context.Context, event any) error {
	timer, ok := event.(*events.TimerElapsed)
	if !ok {
		e.logger.ErrorContext(ctx, "Invalid event type for TimerElapsed")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "interpreter.timer_elapsed",
		attribute.String(otelhelper.ExecutionIDKey, timer.ExecutionID),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	err := e.withLease(ctx, timer.ExecutionID, func(execution *models.Execution, g *graph.Graph) error {
		if execution.Status != models.ExecutionStatusWaiting || execution.WaitKind != models.WaitKindDeadline {
			return nil
		}

		if timer.StepSequence != execution.StepSequence {
			e.logger.InfoContext(ctx, "Stale timer for an earlier step, dropping event",
				"execution_id", execution.ID,
				"timer_sequence", timer.StepSequence,
				"current_sequence", execution.StepSequence)

			return nil
		}

		if execution.WaitUntil != nil && e.clock.Now().Before(*execution.WaitUntil) {
			e.logger.WarnContext(ctx, "Timer fired before its deadline, dropping event",
				"execution_id", execution.ID, "wait_until", execution.WaitUntil)

			return nil
		}

		execution.Resume()

		return e.resumePastWait(ctx, execution, g)
	})
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, timer.ExecutionID))
	}

	return err
}

// HandleManualAdvance force-releases a waiting execution on operator
// request, regardless of its wait condition.
func (e *Engine) HandleManualAdvance(ctx context.Context, event any) error {
	advance, ok := event.(*events.ManualAdvance)
	if !ok {
		e.logger.ErrorContext(ctx, "Invalid event type for ManualAdvance")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "interpreter.manual_advance",
		attribute.String(otelhelper.ExecutionIDKey, advance.ExecutionID),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	err := e.withLease(ctx, advance.ExecutionID, func(execution *models.Execution, g *graph.Graph) error {
		if execution.Status != models.ExecutionStatusWaiting {
			return nil
		}

		e.logger.InfoContext(ctx, "Manual advance",
			"execution_id", execution.ID, "requested_by", advance.RequestedBy)

		execution.Resume()

		return e.resumePastWait(ctx, execution, g)
	})
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, advance.ExecutionID))
	}

	return err
}

// withLease takes the execution's single-writer lease, loads fresh state,
// runs the cancellation checks and hands off to fn. Lease contention
// propagates so the dispatch gets requeued.
func (e *Engine) withLease(ctx context.Context, executionID string, fn func(*models.Execution, *graph.Graph) error) error {
	if err := e.leases.Acquire(ctx, executionID, e.workerID, e.leaseTTL); err != nil {
		if errors.Is(err, lease.ErrAlreadyLeased) {
			return fmt.Errorf("execution %s: %w", executionID, err)
		}

		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	defer e.release(ctx, executionID)

	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			e.logger.WarnContext(ctx, "Event for unknown execution, dropping", "execution_id", executionID)

			return nil
		}

		return fmt.Errorf("failed to load execution: %w", err)
	}

	if execution.Status.Terminal() {
		return nil
	}

	g, stopped, err := e.prepare(ctx, execution)
	if err != nil || stopped {
		return err
	}

	return fn(execution, g)
}

// prepare runs the lazy cancellation checks and refreshes the lead
// snapshot. A true second return means the execution was stopped here.
func (e *Engine) prepare(ctx context.Context, execution *models.Execution) (*graph.Graph, bool, error) {
	flow, err := e.persistence.Flows().GetVersion(ctx, execution.FlowID, execution.FlowVersion)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return nil, true, e.stop(ctx, execution, "flow version no longer exists")
		}

		return nil, false, fmt.Errorf("failed to load pinned flow version: %w", err)
	}

	_, err = e.persistence.Flows().GetPublished(ctx, execution.FlowID)
	if err != nil {
		if persistence.IsPublishedFlowNotFound(err) {
			return nil, true, e.stop(ctx, execution, "flow unpublished")
		}

		return nil, false, fmt.Errorf("failed to check published version: %w", err)
	}

	snapshot, err := e.crm.Snapshot(ctx, execution.LeadID)
	if err != nil {
		if errors.Is(err, protocol.ErrLeadNotFound) {
			return nil, true, e.stop(ctx, execution, "lead deleted")
		}

		return nil, false, fmt.Errorf("failed to refresh lead snapshot: %w", err)
	}

	// Keep the conversation's message history from the persisted state;
	// the CRM refresh covers tags, stage and profile fields.
	if execution.Snapshot != nil {
		snapshot.Message = execution.Snapshot.Message
		snapshot.LastMessage = execution.Snapshot.LastMessage
	}

	execution.Snapshot = snapshot

	g, err := e.compiled(flow)
	if err != nil {
		return nil, true, e.fail(ctx, execution, models.FailureConfiguration, err.Error())
	}

	return g, false, nil
}

// resumePastWait moves a freshly resumed execution from its wait node to
// the default successor and continues stepping.
func (e *Engine) resumePastWait(ctx context.Context, execution *models.Execution, g *graph.Graph) error {
	next, ok := g.Next(execution.CurrentNodeID, models.OutcomeDefault)
	if !ok {
		return e.fail(ctx, execution, models.FailureConfiguration,
			fmt.Sprintf("wait node %s has no default successor", execution.CurrentNodeID))
	}

	if err := e.advance(ctx, execution, next); err != nil {
		return err
	}

	return e.run(ctx, execution, g)
}

// stop marks the execution stopped with a cancellation reason.
func (e *Engine) stop(ctx context.Context, execution *models.Execution, reason string) error {
	execution.Status = models.ExecutionStatusStopped
	execution.WaitKind = models.WaitKindNone
	execution.WaitUntil = nil

	if err := e.persist(ctx, execution); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Execution stopped", "execution_id", execution.ID, "reason", reason)

	e.emit(ctx, execution, events.ExecutionStopped{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStoppedEvent, execution.WorkspaceID),
		ExecutionID: execution.ID,
		Reason:      reason,
	})

	return nil
}

// fail records a terminal typed failure on the execution.
func (e *Engine) fail(ctx context.Context, execution *models.Execution, code models.FailureCode, message string) error {
	execution.Fail(code, message)

	if err := e.persist(ctx, execution); err != nil {
		return err
	}

	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "node_id", execution.CurrentNodeID,
		"code", code, "cause", message)

	e.emit(ctx, execution, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkspaceID),
		ExecutionID: execution.ID,
		NodeID:      execution.CurrentNodeID,
		Code:        code,
		Error:       message,
	})

	return nil
}

// advance commits one step: new current node, bumped sequence, persisted.
func (e *Engine) advance(ctx context.Context, execution *models.Execution, nextNodeID string) error {
	execution.CurrentNodeID = nextNodeID
	execution.StepSequence++

	return e.persist(ctx, execution)
}

func (e *Engine) persist(ctx context.Context, execution *models.Execution) error {
	execution.UpdatedAt = e.clock.Now()

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist execution: %w", err)
	}

	return nil
}

func (e *Engine) emit(ctx context.Context, execution *models.Execution, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, execution.ID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			"execution_id", execution.ID, "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) release(ctx context.Context, executionID string) {
	if err := e.leases.Release(ctx, executionID, e.workerID); err != nil {
		e.logger.ErrorContext(ctx, "Failed to release lease", "execution_id", executionID, "error", err)
	}
}

// compiled returns the cached compiled graph for a flow version.
func (e *Engine) compiled(flow *models.Flow) (*graph.Graph, error) {
	key := fmt.Sprintf("%s@%d", flow.ID, flow.Version)

	if g, ok := e.graphs.get(key); ok {
		return g, nil
	}

	g, err := graph.Compile(flow)
	if err != nil {
		return nil, err
	}

	e.graphs.put(key, g)

	return g, nil
}
