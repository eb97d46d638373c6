package models

import "time"

// ExecutionStatus is the lifecycle state of one lead's traversal of a flow.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusStopped   ExecutionStatus = "stopped"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status admits no further steps.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusStopped || s == ExecutionStatusFailed
}

// WaitKind names the resume condition a waiting execution is suspended on.
type WaitKind string

const (
	WaitKindNone     WaitKind = ""
	WaitKindDeadline WaitKind = "deadline" // resumes when WaitUntil passes
	WaitKindMessage  WaitKind = "message"  // resumes on the next inbound message
)

// FailureCode classifies why an execution reached the failed status.
type FailureCode string

const (
	FailureConfiguration      FailureCode = "configuration_error"
	FailureNoEligibleAssignee FailureCode = "assignment_no_eligible"
	FailureUnassignedTarget   FailureCode = "assignment_unassigned_target"
	FailureLoopLimitExceeded  FailureCode = "loop_limit_exceeded"
)

// Execution is one (lead, flow) traversal in progress. It pins the flow
// version it started on and is a single-writer entity: exactly one
// worker may hold it running at a time.
type Execution struct {
	ID             string          `json:"id"`
	WorkspaceID    string          `json:"workspace_id"`
	FlowID         string          `json:"flow_id"`
	FlowVersion    int             `json:"flow_version"`
	LeadID         string          `json:"lead_id"`
	ConversationID string          `json:"conversation_id"`
	CurrentNodeID  string          `json:"current_node_id"`
	Status         ExecutionStatus `json:"status"`
	WaitKind       WaitKind        `json:"wait_kind,omitempty"`
	WaitUntil      *time.Time      `json:"wait_until,omitempty"`
	Snapshot       *LeadSnapshot   `json:"snapshot,omitempty"`
	StepSequence   int64           `json:"step_sequence"`
	JumpCount      int             `json:"jump_count"`
	FailureCode    FailureCode     `json:"failure_code,omitempty"`
	FailureMessage string          `json:"failure_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Suspend moves the execution into waiting on the given condition.
func (e *Execution) Suspend(kind WaitKind, until *time.Time) {
	e.Status = ExecutionStatusWaiting
	e.WaitKind = kind
	e.WaitUntil = until
}

// Resume clears the wait condition and puts the execution back to running.
func (e *Execution) Resume() {
	e.Status = ExecutionStatusRunning
	e.WaitKind = WaitKindNone
	e.WaitUntil = nil
}

// Fail records a terminal typed failure with its cause.
func (e *Execution) Fail(code FailureCode, message string) {
	e.Status = ExecutionStatusFailed
	e.FailureCode = code
	e.FailureMessage = message
	e.WaitKind = WaitKindNone
	e.WaitUntil = nil
}
