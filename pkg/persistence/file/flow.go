package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/persistence"
)

// FlowRepository stores one JSON file per flow version under
// flows/<flow id>/v<version>.json.
type FlowRepository struct {
	root string
}

func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{root: root}
}

func (r *FlowRepository) flowDir(flowID string) string {
	return filepath.Join(r.root, "flows", flowID)
}

func (r *FlowRepository) versionPath(flowID string, version int) string {
	return filepath.Join(r.flowDir(flowID), fmt.Sprintf("v%d.json", version))
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("id contains invalid characters")
	}

	return nil
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	if err := validateID(flow.ID); err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, err)
	}

	if err := os.MkdirAll(r.flowDir(flow.ID), 0750); err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, err)
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, err)
	}

	if err := os.WriteFile(r.versionPath(flow.ID, flow.Version), data, 0600); err != nil {
		return persistence.NewFlowError("Save", flow.ID, flow.Version, err)
	}

	return nil
}

func (r *FlowRepository) GetVersion(ctx context.Context, flowID string, version int) (*models.Flow, error) {
	if err := validateID(flowID); err != nil {
		return nil, persistence.NewFlowError("GetVersion", flowID, version, err)
	}

	data, err := os.ReadFile(r.versionPath(flowID, version)) // #nosec G304 -- path components are validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetVersion", flowID, version, persistence.ErrFlowVersionNotFound)
		}

		return nil, persistence.NewFlowError("GetVersion", flowID, version, err)
	}

	var flow models.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, persistence.NewFlowError("GetVersion", flowID, version, err)
	}

	return &flow, nil
}

func (r *FlowRepository) versions(flowID string) ([]int, error) {
	entries, err := os.ReadDir(r.flowDir(flowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, err
	}

	versions := make([]int, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
			continue
		}

		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json"))
		if err != nil {
			continue
		}

		versions = append(versions, v)
	}

	if len(versions) == 0 {
		return nil, persistence.ErrFlowNotFound
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	return versions, nil
}

func (r *FlowRepository) GetLatest(ctx context.Context, flowID string) (*models.Flow, error) {
	if err := validateID(flowID); err != nil {
		return nil, persistence.NewFlowError("GetLatest", flowID, 0, err)
	}

	versions, err := r.versions(flowID)
	if err != nil {
		return nil, persistence.NewFlowError("GetLatest", flowID, 0, err)
	}

	return r.GetVersion(ctx, flowID, versions[0])
}

func (r *FlowRepository) GetPublished(ctx context.Context, flowID string) (*models.Flow, error) {
	if err := validateID(flowID); err != nil {
		return nil, persistence.NewFlowError("GetPublished", flowID, 0, err)
	}

	versions, err := r.versions(flowID)
	if err != nil {
		return nil, persistence.NewFlowError("GetPublished", flowID, 0, err)
	}

	for _, version := range versions {
		flow, err := r.GetVersion(ctx, flowID, version)
		if err != nil {
			return nil, err
		}

		if flow.Status == models.FlowStatusPublished {
			return flow, nil
		}
	}

	return nil, persistence.NewFlowError("GetPublished", flowID, 0, persistence.ErrPublishedFlowNotFound)
}

func (r *FlowRepository) List(ctx context.Context, workspaceID string) ([]*models.Flow, error) {
	flowsDir := filepath.Join(r.root, "flows")

	entries, err := os.ReadDir(flowsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Flow{}, nil
		}

		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	flows := make([]*models.Flow, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		flow, err := r.GetLatest(ctx, entry.Name())
		if err != nil {
			continue
		}

		if workspaceID == "" || flow.WorkspaceID == workspaceID {
			flows = append(flows, flow)
		}
	}

	return flows, nil
}
