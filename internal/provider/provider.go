// Package provider implements the LLM provider abstraction. Each
// workflow.ProviderKind maps to one implementation: an OpenAI-compatible
// HTTP client, the Anthropic SDK, a spawned agent CLI, or the static noop
// provider. The registry caches instances by kind and model.
package provider

import (
	"context"
	"errors"
	"net"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Request is a single generation call.
type Request struct {
	// Prompt is the fully assembled user prompt.
	Prompt string

	// System is an optional system prompt.
	System string

	// MaxTokens caps the response length; 0 uses the provider default.
	MaxTokens int

	// OnChunk, when set, enables streaming: it is called with each text
	// delta as it arrives. Result.Content still carries the full text.
	OnChunk func(chunk string)

	// OnTodos, when set, receives the agent's todo list each time the
	// backend reports a change. Only agent backends emit todos.
	OnTodos func(todos []Todo)
}

// Todo is one work item from an agent-reported todo list.
type Todo struct {
	Content string
	Status  string
}

// Result is the outcome of a generation call.
type Result struct {
	Content      string
	TokensInput  int
	TokensOutput int
	ModelUsed    string
	FinishReason string
}

// ModelInfo identifies a model a provider can serve.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Provider generates text for phase prompts.
type Provider interface {
	// Kind returns the provider kind this instance serves.
	Kind() workflow.ProviderKind

	// Generate runs one completion. Transient failures (rate limits,
	// 5xx, network resets) carry CodeProviderTransient; everything else
	// carries CodeProviderFatal.
	Generate(ctx context.Context, req Request) (*Result, error)

	// CheckHealth verifies the provider is reachable.
	CheckHealth(ctx context.Context) error

	// ListModels returns the models the backend advertises. Backends
	// without a catalog endpoint return the configured model.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases any held resources.
	Close() error
}

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 8192

// Transient reports whether err is a retryable provider failure.
func Transient(err error) bool {
	return ucerrors.HasCode(err, ucerrors.CodeProviderTransient)
}

// classifyStatus wraps an HTTP-level provider error with the right code.
func classifyStatus(status int, err error) error {
	if status == 429 || status >= 500 {
		return ucerrors.New(ucerrors.CodeProviderTransient, "provider request failed").WithCause(err)
	}
	return ucerrors.New(ucerrors.CodeProviderFatal, "provider request failed").WithCause(err)
}

// classifyNetwork wraps transport errors. Timeouts and connection resets
// are transient; context cancellation passes through unchanged.
func classifyNetwork(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ucerrors.New(ucerrors.CodeTimeout, "provider call timed out").WithCause(err)
		}
		return ucerrors.New(ucerrors.CodeCancelled, "provider call cancelled").WithCause(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ucerrors.New(ucerrors.CodeProviderTransient, "provider network error").WithCause(err)
	}
	return ucerrors.New(ucerrors.CodeProviderFatal, "provider call failed").WithCause(err)
}
