// Package zapfy implements the messenger and CRM collaborator
// interfaces against the Zapfy platform HTTP API.
package zapfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapfy/botflow/pkg/models"
	"github.com/zapfy/botflow/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("module", "zapfy_client"),
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

type sendMessageResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts an outbound message to the conversation.
func (c *Client) Send(ctx context.Context, conversationID, content string, kind protocol.MessageKind) (string, error) {
	payload := sendMessageRequest{Content: content, Kind: string(kind)}

	var resp sendMessageResponse

	err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", payload, &resp)
	if err != nil {
		return "", err
	}

	return resp.MessageID, nil
}

// Snapshot fetches the current lead record.
func (c *Client) Snapshot(ctx context.Context, leadID string) (*models.LeadSnapshot, error) {
	var snapshot models.LeadSnapshot

	err := c.do(ctx, http.MethodGet, "/leads/"+leadID+"/snapshot", nil, &snapshot)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func (c *Client) AddTag(ctx context.Context, leadID, tagID string) error {
	return c.do(ctx, http.MethodPut, "/leads/"+leadID+"/tags/"+tagID, nil, nil)
}

func (c *Client) SetStage(ctx context.Context, leadID, stageID string) error {
	return c.do(ctx, http.MethodPut, "/leads/"+leadID+"/stage", map[string]string{"stage_id": stageID}, nil)
}

func (c *Client) SetAssignee(ctx context.Context, leadID, userID string) error {
	return c.do(ctx, http.MethodPut, "/leads/"+leadID+"/assignee", map[string]string{"user_id": userID}, nil)
}

func (c *Client) AppendNote(ctx context.Context, leadID, text string) error {
	return c.do(ctx, http.MethodPost, "/leads/"+leadID+"/notes", map[string]string{"text": text}, nil)
}

func (c *Client) Members(ctx context.Context, workspaceID string) ([]models.Member, error) {
	var payload struct {
		Members []models.Member `json:"members"`
	}

	err := c.do(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/members", nil, &payload)
	if err != nil {
		return nil, err
	}

	return payload.Members, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: failed to encode request: %w", method, path, err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, protocol.ErrLeadNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	return nil
}
