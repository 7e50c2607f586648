package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spfcraze/ultraclaude/internal/db"
)

// apiClient talks to a running serve daemon. Commands that act on state
// held in the daemon's memory (pending approvals, active executions) go
// through it.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// resolveApproval posts a decision for the execution's pending approval.
func (c *apiClient) resolveApproval(ctx context.Context, executionID string, approved bool) error {
	body, _ := json.Marshal(map[string]any{
		"approved": approved,
		"source":   db.SourceCLI,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/approvals/"+executionID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach server at %s: %w (is `ultraclaude serve` running?)", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// cancelExecution asks the daemon to cancel an execution. Returns false
// when the server is unreachable or refused.
func (c *apiClient) cancelExecution(ctx context.Context, executionID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/executions/"+executionID+"/cancel", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return result.Cancelled
}

// eventStream opens the daemon's NDJSON event stream for an execution.
// The caller reads lines from the body and closes it.
func (c *apiClient) eventStream(ctx context.Context, executionID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/events/"+executionID, nil)
	if err != nil {
		return nil, err
	}

	// No client timeout: the stream stays open until ctx is cancelled.
	streaming := &http.Client{}
	resp, err := streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach server at %s: %w (is `ultraclaude serve` running?)", c.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return resp, nil
}
