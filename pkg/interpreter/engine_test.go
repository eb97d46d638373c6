package interpreter_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zapfy/botflow/pkg/assign"
	"github.com/zapfy/botflow/pkg/clock"
	"github.com/zapfy/botflow/pkg/events"
	"github.com/zapfy/botflow/pkg/interpreter"
	"github.com/zapfy/botflow/pkg/lease"
	"github.com/zapfy/botflow/pkg/mocks"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
	"github.com/zapfy/botflow/pkg/persistence/file"
	"github.com/zapfy/botflow/pkg/protocol"
)

type engineFixture struct {
	engine      *interpreter.Engine
	persistence persistence.Persistence
	leases      lease.Manager
	messenger   *mocks.MockMessenger
	crm         *mocks.MockCRM
	clock       *clock.Fake
	spans       *tracetest.SpanRecorder
}

func newFixture(t *testing.T, cfg interpreter.Config) *engineFixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	leases := lease.NewMemoryManager()
	messenger := &mocks.MockMessenger{}
	crm := &mocks.MockCRM{}
	fakeClock := clock.NewFake(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-test"
	}

	engine := interpreter.NewEngine(cfg, interpreter.Dependencies{
		Persistence: p,
		Leases:      leases,
		Resolver:    assign.NewResolver(assign.NewMemoryCursorStore()),
		Messenger:   messenger,
		CRM:         crm,
		Publisher:   nil,
		Clock:       fakeClock,
		Logger:      logger,
		Tracer:      provider.Tracer("interpreter-test"),
	})

	return &engineFixture{
		engine:      engine,
		persistence: p,
		leases:      leases,
		messenger:   messenger,
		crm:         crm,
		clock:       fakeClock,
		spans:       recorder,
	}
}

func publishFlow(t *testing.T, f *engineFixture, flow *models.Flow) {
	t.Helper()

	now := f.clock.Now()
	flow.Status = models.FlowStatusPublished
	flow.CreatedAt = now
	flow.UpdatedAt = now
	flow.PublishedAt = &now

	require.NoError(t, f.persistence.Flows().Save(context.Background(), flow))
}

func priceFlow() *models.Flow {
	return &models.Flow{
		ID:          "flow-price",
		WorkspaceID: "ws-1",
		Name:        "Tabela de preços",
		Version:     1,
		EntryNodeID: "check",
		Nodes: []*models.FlowNode{
			{
				ID:   "check",
				Type: models.NodeTypeCondition,
				Data: map[string]any{"field": "message", "operator": "contains", "value": "preço"},
			},
			{
				ID:   "answer",
				Type: models.NodeTypeSendMessage,
				Data: map[string]any{"content": "Nosso preço é..."},
			},
			{
				ID:   "fallback",
				Type: models.NodeTypeSendMessage,
				Data: map[string]any{"content": "Como posso ajudar?"},
			},
			{ID: "mark", Type: models.NodeTypeTag, Data: map[string]any{"tag_id": "tag-interested"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "check", Outcome: models.OutcomeTrue, ToNode: "answer"},
			{ID: "e2", FromNode: "check", Outcome: models.OutcomeFalse, ToNode: "fallback"},
			{ID: "e3", FromNode: "answer", Outcome: models.OutcomeDefault, ToNode: "mark"},
			{ID: "e4", FromNode: "fallback", Outcome: models.OutcomeDefault, ToNode: "end"},
			{ID: "e5", FromNode: "mark", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
}

func entryEvent(flowID, leadID string, snapshot *models.LeadSnapshot) *events.FlowEntry {
	return &events.FlowEntry{
		BaseEvent:      events.NewBaseEvent(events.FlowEntryEvent, "ws-1"),
		FlowID:         flowID,
		LeadID:         leadID,
		ConversationID: "conv-" + leadID,
		Snapshot:       snapshot,
	}
}

func findExecution(t *testing.T, f *engineFixture, status models.ExecutionStatus) *models.Execution {
	t.Helper()

	executions, err := f.persistence.Executions().ListByStatus(context.Background(), "ws-1", status)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	return executions[0]
}

func TestEngine_PriceScenarioCompletes(t *testing.T) {
	f := newFixture(t, interpreter.Config{})
	publishFlow(t, f, priceFlow())

	f.messenger.On("Send", mock.Anything, "conv-lead-1", "Nosso preço é...", protocol.MessageKindText).
		Return("msg-1", nil)
	f.crm.On("AddTag", mock.Anything, "lead-1", "tag-interested").Return(nil)

	snapshot := &models.LeadSnapshot{Message: "qual o preço?"}
	err := f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-price", "lead-1", snapshot))
	require.NoError(t, err)

	execution := findExecution(t, f, models.ExecutionStatusCompleted)
	assert.Equal(t, "end", execution.CurrentNodeID)
	assert.True(t, execution.Snapshot.HasTag("tag-interested"))

	f.messenger.AssertNumberOfCalls(t, "Send", 1)
	f.crm.AssertExpectations(t)
}

func TestEngine_ConditionFalseTakesFallback(t *testing.T) {
	f := newFixture(t, interpreter.Config{})
	publishFlow(t, f, priceFlow())

	f.messenger.On("Send", mock.Anything, "conv-lead-2", "Como posso ajudar?", protocol.MessageKindText).
		Return("msg-1", nil)

	snapshot := &models.LeadSnapshot{Message: "bom dia"}
	err := f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-price", "lead-2", snapshot))
	require.NoError(t, err)

	execution := findExecution(t, f, models.ExecutionStatusCompleted)
	assert.False(t, execution.Snapshot.HasTag("tag-interested"))
	f.messenger.AssertNumberOfCalls(t, "Send", 1)
}

func TestEngine_DuplicateFlowEntryIsDropped(t *testing.T) {
	f := newFixture(t, interpreter.Config{})

	flow := &models.Flow{
		ID:          "flow-wait",
		WorkspaceID: "ws-1",
		Version:     1,
		EntryNodeID: "hold",
		Nodes: []*models.FlowNode{
			{ID: "hold", Type: models.NodeTypeWait, Data: map[string]any{"wait_mode": "message"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "hold", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
	publishFlow(t, f, flow)

	snapshot := &models.LeadSnapshot{}
	require.NoError(t, f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-wait", "lead-1", snapshot)))
	require.NoError(t, f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-wait", "lead-1", snapshot)))

	waiting, err := f.persistence.Executions().ListByStatus(context.Background(), "ws-1", models.ExecutionStatusWaiting)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
}

func TestEngine_GotoLoopLimitFailsAtLimitPlusOne(t *testing.T) {
	const limit = 3

	f := newFixture(t, interpreter.Config{MaxJumps: limit})

	flow := &models.Flow{
		ID:          "flow-loop",
		WorkspaceID: "ws-1",
		Version:     1,
		EntryNodeID: "again",
		Nodes: []*models.FlowNode{
			{ID: "again", Type: models.NodeTypeGoto, Data: map[string]any{"target_node_id": "again"}},
		},
	}
	publishFlow(t, f, flow)

	err := f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-loop", "lead-1", &models.LeadSnapshot{}))
	require.NoError(t, err)

	execution := findExecution(t, f, models.ExecutionStatusFailed)
	assert.Equal(t, models.FailureLoopLimitExceeded, execution.FailureCode)
	assert.Equal(t, limit+1, execution.JumpCount, "fails on the jump after the limit, never earlier")
	assert.Equal(t, int64(limit), execution.StepSequence, "exactly the allowed jumps were committed")
}

func TestEngine_AssignmentWithoutEligibleMembersFails(t *testing.T) {
	f := newFixture(t, interpreter.Config{})

	flow := &models.Flow{
		ID:          "flow-assign",
		WorkspaceID: "ws-1",
		Version:     1,
		EntryNodeID: "route",
		Nodes: []*models.FlowNode{
			{ID: "route", Type: models.NodeTypeRoundRobin, Data: map[string]any{"mode": "round_robin"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "route", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
	publishFlow(t, f, flow)

	f.crm.On("Members", mock.Anything, "ws-1").
		Return([]models.Member{{UserID: "u-viewer", Role: models.RoleViewer}}, nil)

	err := f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-assign", "lead-1", &models.LeadSnapshot{}))
	require.NoError(t, err)

	execution := findExecution(t, f, models.ExecutionStatusFailed)
	assert.Equal(t, models.FailureNoEligibleAssignee, execution.FailureCode)
	f.crm.AssertNotCalled(t, "SetAssignee", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_RoundRobinAssignsAndAdvances(t *testing.T) {
	f := newFixture(t, interpreter.Config{})

	flow := &models.Flow{
		ID:          "flow-assign",
		WorkspaceID: "ws-1",
		Version:     1,
		EntryNodeID: "route",
		Nodes: []*models.FlowNode{
			{ID: "route", Type: models.NodeTypeChangeResponsible, Data: map[string]any{"mode": "round_robin"}},
			{ID: "end", Type: models.NodeTypeStop},
		},
		Edges: []*models.Edge{
			{ID: "e1", FromNode: "route", Outcome: models.OutcomeDefault, ToNode: "end"},
		},
	}
	publishFlow(t, f, flow)

	f.crm.On("Members", mock.Anything, "ws-1").Return([]models.Member{
		{UserID: "u-a", Role: models.RoleSeller},
		{UserID: "u-b", Role: models.RoleManager},
	}, nil)
	f.crm.On("SetAssignee", mock.Anything, "lead-1", "u-a").Return(nil)

	err := f.engine.HandleFlowEntry(context.Background(), entryEvent("flow-assign", "lead-1", &models.LeadSnapshot{}))
	require.NoError(t, err)

	findExecution(t, f, models.ExecutionStatusCompleted)
	f.crm.AssertExpectations(t)
}

func TestEngine_DispatchErrorIsRecordedOnSpan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, interpreter.Config{})
	ctx := context.Background()

	require.NoError(t, f.leases.Acquire(ctx, "exec-leased", "another-worker", time.Minute))

	err := f.engine.HandleMessageReceived(ctx, &events.MessageReceived{
		BaseEvent:   events.NewBaseEvent(events.MessageReceivedEvent, "ws-1"),
		ExecutionID: "exec-leased",
		Content:     "oi",
	})
	require.ErrorIs(t, err, lease.ErrAlreadyLeased)

	spans := f.spans.Ended()
	require.NotEmpty(t, spans, "handler spans go through the injected tracer")

	span := spans[len(spans)-1]
	assert.Equal(t, "interpreter.message_received", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.NotEmpty(t, span.Events(), "the error is recorded as a span event")
}
