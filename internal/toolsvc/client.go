// Package toolsvc implements the tool executor HTTP contract: a client
// used by the dispatcher and a server that backs each tool with its
// connector.
//
// Wire format: POST /invoke with JSON {"tool": name, "args": object}.
// The response is the tool-specific JSON payload, or {"error": message}.
package toolsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/errandhq/errand/internal/httpkit"
	"github.com/errandhq/errand/internal/tools"
)

// invokeRequest is the wire format for one tool invocation.
type invokeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// errorResponse is the wire format for a failed invocation.
type errorResponse struct {
	Error string `json:"error"`
}

// Client invokes tools over the executor's HTTP contract.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an executor client. timeout bounds one invocation
// end to end.
func NewClient(logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		logger:  logger,
		baseURL: baseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(timeout),
		),
	}
}

// Invoke runs one tool and returns its raw JSON payload. Any transport
// failure, non-2xx status, or {"error"} body comes back as an error; the
// caller decides how to surface it.
func (c *Client) Invoke(ctx context.Context, tool tools.Name, args map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(invokeRequest{Tool: string(tool), Args: args})
	if err != nil {
		return nil, fmt.Errorf("toolsvc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("toolsvc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("toolsvc: invoke %s: %w", tool, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := httpkit.ReadErrorBody(resp.Body, 4096)
		// Prefer the structured error message when the body carries one.
		var e errorResponse
		if json.Unmarshal([]byte(msg), &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, fmt.Errorf("toolsvc: invoke %s: status %d: %s", tool, resp.StatusCode, msg)
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("toolsvc: invoke %s: decode response: %w", tool, err)
	}

	// A 200 with an {"error"} body is still a failed invocation.
	var e errorResponse
	if json.Unmarshal(payload, &e) == nil && e.Error != "" {
		return nil, fmt.Errorf("toolsvc: invoke %s: %s", tool, e.Error)
	}

	return payload, nil
}
