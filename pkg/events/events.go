// Package events defines the event types dispatched to and emitted by
// the flow engine.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/zapfy/botflow/pkg/models"
)

type EventType string

// Kafka topics.
const DispatchTopic = "botflow.dispatches"   // Events consumed by workers
const LifecycleTopic = "botflow.executions"  // Execution lifecycle notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Engine inputs. Each is scoped to a single execution, except
	// FlowEntryEvent which creates one.
	FlowEntryEvent       EventType = "execution.flow_entry"
	MessageReceivedEvent EventType = "execution.message_received"
	TimerElapsedEvent    EventType = "execution.timer_elapsed"
	ManualAdvanceEvent   EventType = "execution.manual_advance"

	// Lifecycle notifications emitted by the engine.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionStoppedEvent   EventType = "execution.stopped"
	ExecutionFailedEvent    EventType = "execution.failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkspaceID string         `json:"workspace_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workspaceID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkspaceID: workspaceID,
		Metadata:    make(map[string]any),
	}
}

// FlowEntry triggers a new execution: a lead entered the configured
// stage or tag of a published flow.
type FlowEntry struct {
	BaseEvent

	FlowID         string               `json:"flow_id"`
	LeadID         string               `json:"lead_id"`
	ConversationID string               `json:"conversation_id"`
	Snapshot       *models.LeadSnapshot `json:"snapshot,omitempty"`
}

func (e FlowEntry) GetType() EventType { return FlowEntryEvent }

// MessageReceived notifies the engine of an inbound message on a lead
// conversation with a pending execution.
type MessageReceived struct {
	BaseEvent

	ExecutionID    string `json:"execution_id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

func (e MessageReceived) GetType() EventType { return MessageReceivedEvent }

// TimerElapsed fires when a previously persisted wait deadline passes.
// StepSequence carries the sequence at which the deadline was scheduled
// so late duplicates can be detected and dropped.
type TimerElapsed struct {
	BaseEvent

	ExecutionID  string    `json:"execution_id"`
	StepSequence int64     `json:"step_sequence"`
	DueAt        time.Time `json:"due_at"`
}

func (e TimerElapsed) GetType() EventType { return TimerElapsedEvent }

// ManualAdvance is an operator-initiated nudge for a waiting execution.
type ManualAdvance struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	RequestedBy string `json:"requested_by"`
}

func (e ManualAdvance) GetType() EventType { return ManualAdvanceEvent }

// Lifecycle notifications.

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	FlowVersion int    `json:"flow_version"`
	LeadID      string `json:"lead_id"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	WaitKind    models.WaitKind `json:"wait_kind"`
	WaitUntil   *time.Time      `json:"wait_until,omitempty"`
}

func (e ExecutionSuspended) GetType() EventType { return ExecutionSuspendedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	FlowID        string `json:"flow_id"`
	StepsExecuted int64  `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionStopped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

func (e ExecutionStopped) GetType() EventType { return ExecutionStoppedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	NodeID      string             `json:"node_id"`
	Code        models.FailureCode `json:"code"`
	Error       string             `json:"error"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }
