package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

const executionColumns = `
	id
  , workspace_id
  , flow_id
  , flow_version
  , lead_id
  , conversation_id
  , current_node_id
  , status
  , wait_kind
  , wait_until
  , snapshot
  , step_sequence
  , jump_count
  , failure_code
  , failure_message
  , created_at
  , updated_at
`

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the execution row.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	var (
		snapshotJSON []byte
		err          error
	)

	if execution.Snapshot != nil {
		snapshotJSON, err = json.Marshal(execution.Snapshot)
		if err != nil {
			return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to marshal snapshot: %w", err))
		}
	}

	query := `
		INSERT INTO executions (id, workspace_id, flow_id, flow_version, lead_id, conversation_id,
			current_node_id, status, wait_kind, wait_until, snapshot, step_sequence, jump_count,
			failure_code, failure_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			wait_kind = EXCLUDED.wait_kind,
			wait_until = EXCLUDED.wait_until,
			snapshot = EXCLUDED.snapshot,
			step_sequence = EXCLUDED.step_sequence,
			jump_count = EXCLUDED.jump_count,
			failure_code = EXCLUDED.failure_code,
			failure_message = EXCLUDED.failure_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkspaceID,
		execution.FlowID,
		execution.FlowVersion,
		execution.LeadID,
		execution.ConversationID,
		execution.CurrentNodeID,
		execution.Status,
		execution.WaitKind,
		execution.WaitUntil,
		snapshotJSON,
		execution.StepSequence,
		execution.JumpCount,
		execution.FailureCode,
		execution.FailureMessage,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE id = $1
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, executionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByStatus(ctx context.Context, workspaceID string, status models.ExecutionStatus) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE workspace_id = $1 AND status = $2
		ORDER BY updated_at DESC
	`

	return r.queryExecutions(ctx, query, workspaceID, status)
}

// DueDeadlines returns waiting executions whose deadline has passed.
func (r *ExecutionRepository) DueDeadlines(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = $1 AND wait_kind = $2 AND wait_until <= $3
		ORDER BY wait_until ASC
		LIMIT $4
	`

	return r.queryExecutions(ctx, query, models.ExecutionStatusWaiting, models.WaitKindDeadline, now, limit)
}

// FindActive returns the running or waiting execution for the (lead, flow)
// pair. The schema enforces at most one.
func (r *ExecutionRepository) FindActive(ctx context.Context, leadID, flowID string) (*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE lead_id = $1 AND flow_id = $2 AND status IN ($3, $4)
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query,
		leadID, flowID, models.ExecutionStatusRunning, models.ExecutionStatusWaiting))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("FindActive", "", persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("FindActive", "", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.Execution, error) {
	var (
		execution    models.Execution
		snapshotJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.WorkspaceID,
		&execution.FlowID,
		&execution.FlowVersion,
		&execution.LeadID,
		&execution.ConversationID,
		&execution.CurrentNodeID,
		&execution.Status,
		&execution.WaitKind,
		&execution.WaitUntil,
		&snapshotJSON,
		&execution.StepSequence,
		&execution.JumpCount,
		&execution.FailureCode,
		&execution.FailureMessage,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if snapshotJSON != nil {
		if err := json.Unmarshal(snapshotJSON, &execution.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}

	return &execution, nil
}
