package provider

import (
	"context"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Static serves the "none" kind: it returns a canned response without any
// network or process access. Dry runs and tests use it to exercise the
// full pipeline.
type Static struct {
	// Response overrides the default canned content.
	Response string
}

// staticResponse matches the default success pattern so dry runs of the
// builtin pipeline complete.
const staticResponse = "no provider configured for this phase /complete"

// NewStatic builds the noop provider.
func NewStatic() *Static {
	return &Static{}
}

// Kind returns the served provider kind.
func (p *Static) Kind() workflow.ProviderKind {
	return workflow.ProviderNone
}

// Generate returns the canned content immediately.
func (p *Static) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyNetwork(ctx, err)
	}
	content := p.Response
	if content == "" {
		content = staticResponse
	}
	if req.OnChunk != nil {
		req.OnChunk(content)
	}
	return &Result{Content: content, FinishReason: "stop"}, nil
}

// CheckHealth always succeeds.
func (p *Static) CheckHealth(ctx context.Context) error {
	return nil
}

// ListModels returns the single canned model.
func (p *Static) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: "static"}}, nil
}

// Close is a no-op.
func (p *Static) Close() error {
	return nil
}
