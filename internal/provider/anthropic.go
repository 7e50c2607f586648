package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// defaultAnthropicModel is used when a phase leaves Model empty.
const defaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic serves the sdk_agent kind through the Anthropic Messages API.
type Anthropic struct {
	client sdk.Client
	cfg    workflow.ProviderConfig
}

// NewAnthropic builds an Anthropic provider.
func NewAnthropic(cfg workflow.ProviderConfig, apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, ucerrors.New(ucerrors.CodeConfigError, "anthropic api key is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	return &Anthropic{
		client: sdk.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Kind returns the served provider kind.
func (p *Anthropic) Kind() workflow.ProviderKind {
	return workflow.ProviderSDKAgent
}

func (p *Anthropic) model() sdk.Model {
	if p.cfg.Model != "" {
		return sdk.Model(p.cfg.Model)
	}
	return sdk.Model(defaultAnthropicModel)
}

func (p *Anthropic) params(req Request) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     p.model(),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
		Temperature: sdk.Float(p.cfg.EffectiveTemperature()),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Generate runs one Messages call, streaming when req.OnChunk is set.
func (p *Anthropic) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.OnChunk != nil {
		return p.generateStream(ctx, req)
	}

	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Result{
		Content:      content.String(),
		TokensInput:  int(msg.Usage.InputTokens),
		TokensOutput: int(msg.Usage.OutputTokens),
		ModelUsed:    string(msg.Model),
		FinishReason: string(msg.StopReason),
	}, nil
}

func (p *Anthropic) generateStream(ctx context.Context, req Request) (*Result, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	defer func() { _ = stream.Close() }()

	var content strings.Builder
	acc := sdk.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, ucerrors.New(ucerrors.CodeProviderFatal, "accumulate stream event").WithCause(err)
		}
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
				content.WriteString(delta.Text)
				req.OnChunk(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.classify(ctx, err)
	}

	return &Result{
		Content:      content.String(),
		TokensInput:  int(acc.Usage.InputTokens),
		TokensOutput: int(acc.Usage.OutputTokens),
		ModelUsed:    string(acc.Model),
		FinishReason: string(acc.StopReason),
	}, nil
}

// CheckHealth issues a minimal request to verify credentials and reachability.
func (p *Anthropic) CheckHealth(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     p.model(),
		MaxTokens: 1,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check: %w", err)
	}
	return nil
}

// ListModels enumerates models through the Models API.
func (p *Anthropic) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := p.client.Models.List(ctx, sdk.ModelListParams{})
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	models := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: "anthropic"})
	}
	return models, nil
}

// Close is a no-op.
func (p *Anthropic) Close() error {
	return nil
}

func (p *Anthropic) classify(ctx context.Context, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	return classifyNetwork(ctx, err)
}
