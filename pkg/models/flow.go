// Package models defines the core domain models for the sales-bot flow engine.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft       FlowStatus = "draft"       // Editable, not executable
	FlowStatusPublished   FlowStatus = "published"   // Current active, executable
	FlowStatusUnpublished FlowStatus = "unpublished" // Historical, not executable
)

// Flow is a workspace-owned graph of bot nodes. A published flow is
// immutable: edits create a new version, and in-flight executions keep
// referencing the version they started on.
type Flow struct {
	ID          string      `json:"id"`
	WorkspaceID string      `json:"workspace_id" validate:"required"`
	Name        string      `json:"name"         validate:"required,min=3"`
	Status      FlowStatus  `json:"status"       validate:"required"`
	Version     int         `json:"version"`
	EntryNodeID string      `json:"entry_node_id"`
	Nodes       []*FlowNode `json:"nodes"`
	Edges       []*Edge     `json:"edges"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *FlowNode {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
