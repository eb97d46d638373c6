// Package mocks provides testify mocks for the collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zapfy/botflow/pkg/eventbus"
	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/protocol"
)

// MockPublisher is a mock implementation of eventbus.EventPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

// MockMessenger is a mock implementation of protocol.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, conversationID, content string, kind protocol.MessageKind) (string, error) {
	args := m.Called(ctx, conversationID, content, kind)

	return args.String(0), args.Error(1)
}

// MockCRM is a mock implementation of protocol.CRM.
type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) Snapshot(ctx context.Context, leadID string) (*models.LeadSnapshot, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.LeadSnapshot), args.Error(1)
}

func (m *MockCRM) AddTag(ctx context.Context, leadID, tagID string) error {
	args := m.Called(ctx, leadID, tagID)

	return args.Error(0)
}

func (m *MockCRM) SetStage(ctx context.Context, leadID, stageID string) error {
	args := m.Called(ctx, leadID, stageID)

	return args.Error(0)
}

func (m *MockCRM) SetAssignee(ctx context.Context, leadID, userID string) error {
	args := m.Called(ctx, leadID, userID)

	return args.Error(0)
}

func (m *MockCRM) AppendNote(ctx context.Context, leadID, text string) error {
	args := m.Called(ctx, leadID, text)

	return args.Error(0)
}

func (m *MockCRM) Members(ctx context.Context, workspaceID string) ([]models.Member, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Member), args.Error(1)
}
