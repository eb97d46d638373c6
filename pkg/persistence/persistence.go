// Package persistence provides the data storage abstraction for flows
// and executions.
package persistence

import (
	"context"
	"time"

	"github.com/zapfy/botflow/pkg/models"
)

// FlowRepository stores flow definitions. Versions are immutable once
// written with status published.
type FlowRepository interface {
	// Save writes the given (flow id, version) record.
	Save(ctx context.Context, flow *models.Flow) error

	// GetLatest returns the highest version of the flow.
	GetLatest(ctx context.Context, flowID string) (*models.Flow, error)

	// GetVersion returns the exact version an execution pinned.
	GetVersion(ctx context.Context, flowID string, version int) (*models.Flow, error)

	// GetPublished returns the currently published version of the flow,
	// or ErrPublishedFlowNotFound.
	GetPublished(ctx context.Context, flowID string) (*models.Flow, error)

	// List returns the latest version of every flow in the workspace.
	List(ctx context.Context, workspaceID string) ([]*models.Flow, error)
}

// ExecutionRepository stores execution state. Save is the persistence
// point of a step: a step's side effects are only considered committed
// once the new state is durable.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.Execution) error

	GetByID(ctx context.Context, executionID string) (*models.Execution, error)

	// ListByStatus returns workspace executions in the given status,
	// newest first. Used for operator visibility of failures.
	ListByStatus(ctx context.Context, workspaceID string, status models.ExecutionStatus) ([]*models.Execution, error)

	// DueDeadlines returns waiting executions whose deadline has passed,
	// for the timekeeper sweep.
	DueDeadlines(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error)

	// FindActive returns the running or waiting execution for the
	// (lead, flow) pair, or ErrExecutionNotFound. At most one exists.
	FindActive(ctx context.Context, leadID, flowID string) (*models.Execution, error)
}

type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
