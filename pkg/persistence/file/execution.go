package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

// ExecutionRepository stores one JSON file per execution under
// executions/<execution id>.json.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (r *ExecutionRepository) executionsDir() string {
	return filepath.Join(r.root, "executions")
}

func (r *ExecutionRepository) executionPath(executionID string) string {
	return filepath.Join(r.executionsDir(), executionID+".json")
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if err := os.MkdirAll(r.executionsDir(), 0750); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if err := os.WriteFile(r.executionPath(execution.ID), data, 0600); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.Execution, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	data, err := os.ReadFile(r.executionPath(executionID)) // #nosec G304 -- path components are validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) scan(filter func(*models.Execution) bool) ([]*models.Execution, error) {
	entries, err := os.ReadDir(r.executionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Execution{}, nil
		}

		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.Execution, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		execution, err := r.GetByID(context.Background(), strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		if filter(execution) {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (r *ExecutionRepository) ListByStatus(ctx context.Context, workspaceID string, status models.ExecutionStatus) ([]*models.Execution, error) {
	executions, err := r.scan(func(e *models.Execution) bool {
		return e.Status == status && (workspaceID == "" || e.WorkspaceID == workspaceID)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].UpdatedAt.After(executions[j].UpdatedAt)
	})

	return executions, nil
}

func (r *ExecutionRepository) DueDeadlines(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	executions, err := r.scan(func(e *models.Execution) bool {
		return e.Status == models.ExecutionStatusWaiting &&
			e.WaitKind == models.WaitKindDeadline &&
			e.WaitUntil != nil && !e.WaitUntil.After(now)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].WaitUntil.Before(*executions[j].WaitUntil)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (r *ExecutionRepository) FindActive(ctx context.Context, leadID, flowID string) (*models.Execution, error) {
	executions, err := r.scan(func(e *models.Execution) bool {
		return e.LeadID == leadID && e.FlowID == flowID && !e.Status.Terminal()
	})
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, persistence.NewExecutionError("FindActive", "", persistence.ErrExecutionNotFound)
	}

	return executions[0], nil
}
