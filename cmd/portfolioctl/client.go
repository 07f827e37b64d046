package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpapi "github.com/fyrsmithlabs/portfoliod/internal/http"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// client talks to a running portfoliod. It satisfies console.Asker.
type client struct {
	baseURL        string
	http           *http.Client
	conversationID string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: timeout},
		conversationID: uuid.NewString(),
	}
}

// Ask posts one chat turn.
func (c *client) Ask(ctx context.Context, message string, prior *supervisor.Slots) (*supervisor.Response, error) {
	raw, err := c.askRaw(ctx, message, prior)
	if err != nil {
		return nil, err
	}
	var resp supervisor.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func (c *client) askRaw(ctx context.Context, message string, prior *supervisor.Slots) ([]byte, error) {
	body, err := json.Marshal(httpapi.ChatRequest{Message: message, PriorSlots: prior})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpapi.HeaderConversationID, c.conversationID)
	return c.do(req)
}

// Health fetches GET /health.
func (c *client) Health(ctx context.Context) (*httpapi.HealthResponse, error) {
	var out httpapi.HealthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Properties fetches the property catalog.
func (c *client) Properties(ctx context.Context) ([]httpapi.PropertyResponse, error) {
	var out []httpapi.PropertyResponse
	if err := c.getJSON(ctx, "/api/v1/properties", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr httpapi.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
