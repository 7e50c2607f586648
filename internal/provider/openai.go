package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Default endpoints for the OpenAI-compatible provider kinds.
const (
	openRouterBaseURL   = "https://openrouter.ai/api/v1"
	geminiCompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	ollamaBaseURL       = "http://localhost:11434/v1"
	lmStudioBaseURL     = "http://localhost:1234/v1"
)

// OpenAICompat serves every provider kind that speaks the OpenAI chat
// completions protocol: openai itself, openrouter, gemini's compatibility
// endpoint, local ollama and LM Studio servers, and arbitrary generic
// endpoints.
type OpenAICompat struct {
	kind   workflow.ProviderKind
	client *openai.Client
	cfg    workflow.ProviderConfig
}

// NewOpenAICompat builds a client for the given kind. apiKey may be empty
// for local servers.
func NewOpenAICompat(kind workflow.ProviderKind, cfg workflow.ProviderConfig, apiKey string) (*OpenAICompat, error) {
	baseURL, err := resolveBaseURL(kind, cfg)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &OpenAICompat{
		kind:   kind,
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func resolveBaseURL(kind workflow.ProviderKind, cfg workflow.ProviderConfig) (string, error) {
	if cfg.APIURL != "" {
		return cfg.APIURL, nil
	}
	switch kind {
	case workflow.ProviderOpenAI:
		return "", nil
	case workflow.ProviderOpenRouter, workflow.ProviderGeminiOpenRouter:
		return openRouterBaseURL, nil
	case workflow.ProviderGeminiDirect, workflow.ProviderGeminiOAuth:
		return geminiCompatBaseURL, nil
	case workflow.ProviderOllama:
		return ollamaBaseURL, nil
	case workflow.ProviderLMStudio:
		return lmStudioBaseURL, nil
	case workflow.ProviderGenericOpenAI, workflow.ProviderCloudCodeAssist:
		return "", ucerrors.Newf(ucerrors.CodeConfigError, "provider kind %s requires api_url", kind)
	default:
		return "", ucerrors.Newf(ucerrors.CodeConfigError, "provider kind %s is not OpenAI-compatible", kind)
	}
}

// Kind returns the served provider kind.
func (p *OpenAICompat) Kind() workflow.ProviderKind {
	return p.kind
}

// Generate runs one chat completion, streaming when req.OnChunk is set.
func (p *OpenAICompat) Generate(ctx context.Context, req Request) (*Result, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: float32(p.cfg.EffectiveTemperature()),
		MaxTokens:   req.MaxTokens,
	}
	if chatReq.MaxTokens == 0 {
		chatReq.MaxTokens = DefaultMaxTokens
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	if req.OnChunk != nil {
		return p.generateStream(ctx, chatReq, req.OnChunk)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ucerrors.New(ucerrors.CodeProviderFatal, "provider returned no choices")
	}

	return &Result{
		Content:      resp.Choices[0].Message.Content,
		TokensInput:  resp.Usage.PromptTokens,
		TokensOutput: resp.Usage.CompletionTokens,
		ModelUsed:    resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (p *OpenAICompat) generateStream(ctx context.Context, chatReq openai.ChatCompletionRequest, onChunk func(string)) (*Result, error) {
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	defer stream.Close()

	var content strings.Builder
	result := &Result{ModelUsed: p.cfg.Model}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.classify(ctx, err)
		}
		if resp.Usage != nil {
			result.TokensInput = resp.Usage.PromptTokens
			result.TokensOutput = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			content.WriteString(delta)
			onChunk(delta)
		}
		if fr := resp.Choices[0].FinishReason; fr != "" {
			result.FinishReason = string(fr)
		}
	}

	result.Content = content.String()
	return result, nil
}

// CheckHealth lists models to verify the endpoint answers.
func (p *OpenAICompat) CheckHealth(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("provider %s health check: %w", p.kind, err)
	}
	return nil
}

// ListModels enumerates the models the endpoint serves.
func (p *OpenAICompat) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.classify(ctx, err)
	}
	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (p *OpenAICompat) Close() error {
	return nil
}

func (p *OpenAICompat) classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	return classifyNetwork(ctx, err)
}
