// Package flow manages flow definitions: draft editing, publish-time
// validation and immutable versioning.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapfy/botflow/pkg/graph"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

var (
	// ErrAlreadyPublished is returned when publishing a flow whose latest
	// version is already the published one.
	ErrAlreadyPublished = errors.New("flow version is already published")

	// ErrNoPublishedVersion is returned when unpublishing a flow that has
	// no published version.
	ErrNoPublishedVersion = errors.New("flow has no published version")

	// ErrInvalidNodeData is wrapped by per-node schema validation failures.
	ErrInvalidNodeData = errors.New("invalid node data")
)

// Service handles flow lifecycle operations. Published versions are
// immutable: edits after a publish open a new draft version.
type Service struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewService creates a new flow service.
func NewService(p persistence.Persistence, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		logger:      logger.With("module", "flow_service"),
	}
}

// Definition carries the editable parts of a flow.
type Definition struct {
	Name        string
	EntryNodeID string
	Nodes       []*models.FlowNode
	Edges       []*models.Edge
}

// Create opens a new draft flow at version 1.
func (s *Service) Create(ctx context.Context, workspaceID string, def Definition) (*models.Flow, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow ID: %w", err)
	}

	now := time.Now().UTC()
	flow := &models.Flow{
		ID:          id.String(),
		WorkspaceID: workspaceID,
		Name:        def.Name,
		Status:      models.FlowStatusDraft,
		Version:     1,
		EntryNodeID: def.EntryNodeID,
		Nodes:       def.Nodes,
		Edges:       def.Edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	s.logger.InfoContext(ctx, "Flow created", "flow_id", flow.ID, "workspace_id", workspaceID)

	return flow, nil
}

// Update applies a new definition to the flow. Drafts are overwritten in
// place; if the latest version was published or unpublished, a new draft
// version is opened so the published graph stays immutable.
func (s *Service) Update(ctx context.Context, flowID string, def Definition) (*models.Flow, error) {
	latest, err := s.persistence.Flows().GetLatest(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if latest.Status != models.FlowStatusDraft {
		latest.Version++
		latest.Status = models.FlowStatusDraft
		latest.PublishedAt = nil
	}

	latest.Name = def.Name
	latest.EntryNodeID = def.EntryNodeID
	latest.Nodes = def.Nodes
	latest.Edges = def.Edges
	latest.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Flows().Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return latest, nil
}

// Publish validates the latest draft and makes it the published version.
// Any previously published version is marked unpublished; executions that
// pinned it keep reading it by exact version.
func (s *Service) Publish(ctx context.Context, flowID string) (*models.Flow, error) {
	latest, err := s.persistence.Flows().GetLatest(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow for publishing: %w", err)
	}

	if latest.Status == models.FlowStatusPublished {
		return nil, ErrAlreadyPublished
	}

	if err := s.Validate(latest); err != nil {
		return nil, fmt.Errorf("flow validation failed: %w", err)
	}

	previous, err := s.persistence.Flows().GetPublished(ctx, flowID)
	if err != nil && !persistence.IsPublishedFlowNotFound(err) {
		return nil, fmt.Errorf("failed to look up published version: %w", err)
	}

	if previous != nil {
		previous.Status = models.FlowStatusUnpublished
		previous.UpdatedAt = time.Now().UTC()

		if err := s.persistence.Flows().Save(ctx, previous); err != nil {
			return nil, fmt.Errorf("failed to unpublish previous version: %w", err)
		}
	}

	now := time.Now().UTC()
	latest.Status = models.FlowStatusPublished
	latest.PublishedAt = &now
	latest.UpdatedAt = now

	if err := s.persistence.Flows().Save(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to save published flow: %w", err)
	}

	s.logger.InfoContext(ctx, "Flow published",
		"flow_id", latest.ID, "version", latest.Version)

	return latest, nil
}

// Unpublish retires the published version. Running executions keep their
// pinned version; no new executions can enter the flow.
func (s *Service) Unpublish(ctx context.Context, flowID string) (*models.Flow, error) {
	published, err := s.persistence.Flows().GetPublished(ctx, flowID)
	if err != nil {
		if persistence.IsPublishedFlowNotFound(err) {
			return nil, ErrNoPublishedVersion
		}

		return nil, fmt.Errorf("failed to get published version: %w", err)
	}

	published.Status = models.FlowStatusUnpublished
	published.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Flows().Save(ctx, published); err != nil {
		return nil, fmt.Errorf("failed to save unpublished flow: %w", err)
	}

	s.logger.InfoContext(ctx, "Flow unpublished",
		"flow_id", published.ID, "version", published.Version)

	return published, nil
}

// Get returns the latest version of a flow.
func (s *Service) Get(ctx context.Context, flowID string) (*models.Flow, error) {
	return s.persistence.Flows().GetLatest(ctx, flowID)
}

// List returns the latest version of every flow in the workspace.
func (s *Service) List(ctx context.Context, workspaceID string) ([]*models.Flow, error) {
	return s.persistence.Flows().List(ctx, workspaceID)
}

// Validate runs the publish-time checks: per-node data schemas, then
// graph structure (entry node, dangling edges, branch coverage, default
// path acyclicity).
func (s *Service) Validate(flow *models.Flow) error {
	for _, node := range flow.Nodes {
		if err := validateNodeData(node); err != nil {
			return err
		}
	}

	if _, err := graph.Compile(flow); err != nil {
		return err
	}

	return nil
}
