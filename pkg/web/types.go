// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/zapfy/botflow/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	WorkspaceID string             `json:"workspace_id"  validate:"required"`
	Name        string             `json:"name"          validate:"required,min=3"`
	EntryNodeID string             `json:"entry_node_id" validate:"required"`
	Nodes       []*models.FlowNode `json:"nodes"         validate:"required,min=1"`
	Edges       []*models.Edge     `json:"edges"`
}

// UpdateFlowRequest represents the request body for replacing a flow
// definition. Updating a published or unpublished version opens a new
// draft; the published version stays untouched.
type UpdateFlowRequest struct {
	Name        string             `json:"name"          validate:"required,min=3"`
	EntryNodeID string             `json:"entry_node_id" validate:"required"`
	Nodes       []*models.FlowNode `json:"nodes"         validate:"required,min=1"`
	Edges       []*models.Edge     `json:"edges"`
}

// FlowEntryRequest represents the request body for pushing a lead into
// the published version of a flow.
type FlowEntryRequest struct {
	LeadID         string               `json:"lead_id"         validate:"required"`
	ConversationID string               `json:"conversation_id" validate:"required"`
	Snapshot       *models.LeadSnapshot `json:"snapshot,omitempty"`
}

// InboundMessageRequest represents an inbound lead message routed to a
// waiting execution.
type InboundMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content" validate:"required"`
}

// AdvanceRequest represents an operator-initiated release of a waiting
// execution.
type AdvanceRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
}

// AcceptedResponse acknowledges an event that was queued for the workers.
type AcceptedResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}
