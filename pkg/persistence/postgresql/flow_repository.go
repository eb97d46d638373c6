package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

const flowColumns = `
	id
  , version
  , workspace_id
  , name
  , status
  , entry_node_id
  , nodes
  , edges
  , created_at
  , updated_at
  , published_at
`

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// Save upserts the (flow id, version) row.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	nodesJSON, err := json.Marshal(flow.Nodes)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, fmt.Errorf("failed to marshal nodes: %w", err))
	}

	edgesJSON, err := json.Marshal(flow.Edges)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, fmt.Errorf("failed to marshal edges: %w", err))
	}

	query := `
		INSERT INTO flows (id, version, workspace_id, name, status, entry_node_id, nodes, edges, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id, version) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			entry_node_id = EXCLUDED.entry_node_id,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Version,
		flow.WorkspaceID,
		flow.Name,
		flow.Status,
		flow.EntryNodeID,
		nodesJSON,
		edgesJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
		flow.PublishedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, err)
	}

	return nil
}

// GetLatest returns the highest version of the flow.
func (r *FlowRepository) GetLatest(ctx context.Context, flowID string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	flow, err := r.scanFlow(r.db.QueryRowContext(ctx, query, flowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetLatest", flowID, 0, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetLatest", flowID, 0, err)
	}

	return flow, nil
}

// GetVersion returns the exact version an execution pinned.
func (r *FlowRepository) GetVersion(ctx context.Context, flowID string, version int) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND version = $2
	`

	flow, err := r.scanFlow(r.db.QueryRowContext(ctx, query, flowID, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetVersion", flowID, version, persistence.ErrFlowVersionNotFound)
		}

		return nil, persistence.NewFlowError("GetVersion", flowID, version, err)
	}

	return flow, nil
}

// GetPublished returns the currently published version of the flow.
func (r *FlowRepository) GetPublished(ctx context.Context, flowID string) (*models.Flow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND status = $2
		ORDER BY version DESC
		LIMIT 1
	`

	flow, err := r.scanFlow(r.db.QueryRowContext(ctx, query, flowID, models.FlowStatusPublished))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetPublished", flowID, 0, persistence.ErrPublishedFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetPublished", flowID, 0, err)
	}

	return flow, nil
}

// List returns the latest version of every flow in the workspace.
func (r *FlowRepository) List(ctx context.Context, workspaceID string) ([]*models.Flow, error) {
	query := `
		SELECT DISTINCT ON (id) ` + flowColumns + `
		FROM flows
		WHERE workspace_id = $1
		ORDER BY id, version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := r.scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) scanFlow(scanner interface {
	Scan(dest ...any) error
}) (*models.Flow, error) {
	var (
		flow                 models.Flow
		nodesJSON, edgesJSON []byte
	)

	err := scanner.Scan(
		&flow.ID,
		&flow.Version,
		&flow.WorkspaceID,
		&flow.Name,
		&flow.Status,
		&flow.EntryNodeID,
		&nodesJSON,
		&edgesJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&flow.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &flow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	return &flow, nil
}
