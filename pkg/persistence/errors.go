// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates no flow exists with the given id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowVersionNotFound indicates the exact pinned version is gone.
	ErrFlowVersionNotFound = errors.New("flow version not found")

	// ErrPublishedFlowNotFound indicates no published version exists.
	ErrPublishedFlowNotFound = errors.New("published flow not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")
)

// FlowError wraps flow-related errors with operation context.
type FlowError struct {
	Op      string // Operation being performed (e.g. "GetVersion", "Save")
	FlowID  string
	Version int
	Err     error
}

func (e *FlowError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s operation failed for flow %s v%d: %v", e.Op, e.FlowID, e.Version, e.Err)
	}

	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, version int, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Version: version, Err: err}
}

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) || errors.Is(err, ErrFlowVersionNotFound)
}

// IsPublishedFlowNotFound checks if an error indicates no published
// version exists.
func IsPublishedFlowNotFound(err error) bool {
	return errors.Is(err, ErrPublishedFlowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not
// found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
