package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spfcraze/ultraclaude/internal/db"
)

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "toolong...", truncate("toolongstring", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestFormatUSD(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "$0.0030", formatUSD(0.003))
	assert.Equal(t, "$12.5000", formatUSD(12.5))
}

func TestResolveApprovalViaClient(t *testing.T) {
	t.Parallel()

	var got struct {
		Approved bool   `json:"approved"`
		Source   string `json:"source"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/approvals/ex1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resolved":true,"approved":true}`))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	require.NoError(t, client.resolveApproval(context.Background(), "ex1", true))
	assert.True(t, got.Approved)
	assert.Equal(t, db.SourceCLI, got.Source)
}

func TestResolveApprovalErrorSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"no pending approval for execution ex1","code":"INVALID_STATE"}`))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	err := client.resolveApproval(context.Background(), "ex1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending approval")
}

func TestCancelExecutionViaClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/executions/ex2/cancel", r.URL.Path)
		_, _ = w.Write([]byte(`{"cancelled":true}`))
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL)
	assert.True(t, client.cancelExecution(context.Background(), "ex2"))

	// Unreachable server reports not cancelled rather than an error.
	unreachable := newAPIClient("http://127.0.0.1:1")
	assert.False(t, unreachable.cancelExecution(context.Background(), "ex2"))
}
