// Package protocol defines the collaborator interfaces the engine
// depends on. Implementations (messaging transport, CRM backend) live
// outside this module.
package protocol

import (
	"context"
	"errors"

	"github.com/zapfy/botflow/pkg/models"
)

// ErrLeadNotFound is returned by CRM implementations when the lead or
// its conversation no longer exists; the engine treats it as a lazy
// cancellation signal.
var ErrLeadNotFound = errors.New("lead not found")

// MessageKind is the outbound content kind passed to the messenger.
type MessageKind string

const (
	MessageKindText         MessageKind = "text"
	MessageKindReaction     MessageKind = "reaction"
	MessageKindComment      MessageKind = "comment"
	MessageKindWhatsAppList MessageKind = "whatsapp_list"
)

// Messenger is the send capability of the messaging channel.
type Messenger interface {
	Send(ctx context.Context, conversationID, content string, kind MessageKind) (messageID string, err error)
}

// CRM exposes the lead record mutations and reads the engine performs.
type CRM interface {
	Snapshot(ctx context.Context, leadID string) (*models.LeadSnapshot, error)
	AddTag(ctx context.Context, leadID, tagID string) error
	SetStage(ctx context.Context, leadID, stageID string) error
	SetAssignee(ctx context.Context, leadID, userID string) error
	AppendNote(ctx context.Context, leadID, text string) error
	Members(ctx context.Context, workspaceID string) ([]models.Member, error)
}
