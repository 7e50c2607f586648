package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Credentials carries the secrets and paths the registry needs to build
// provider instances. Keys may be empty; building a provider that needs a
// missing key fails with CONFIG_ERROR.
type Credentials struct {
	AnthropicKey  string
	OpenAIKey     string
	OpenRouterKey string
	GeminiKey     string

	// CLIPath is the agent binary for cli_tool providers.
	CLIPath string
}

// Registry builds and caches provider instances. Instances are shared by
// (kind, model) so concurrent phases reuse clients.
type Registry struct {
	creds  Credentials
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]Provider

	// build is swappable in tests.
	build func(cfg workflow.ProviderConfig) (Provider, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithBuilder overrides instance construction, for tests.
func WithBuilder(build func(cfg workflow.ProviderConfig) (Provider, error)) RegistryOption {
	return func(r *Registry) { r.build = build }
}

// NewRegistry creates a provider registry.
func NewRegistry(creds Credentials, opts ...RegistryOption) *Registry {
	r := &Registry{
		creds:  creds,
		logger: slog.Default(),
		cache:  make(map[string]Provider),
	}
	r.build = r.newProvider
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cacheKey(cfg workflow.ProviderConfig) string {
	return string(cfg.Kind) + "\x00" + cfg.Model
}

// Get returns a cached instance for the config, building one on first use.
func (r *Registry) Get(cfg workflow.ProviderConfig) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey(cfg)
	if p, ok := r.cache[key]; ok {
		return p, nil
	}

	p, err := r.build(cfg)
	if err != nil {
		return nil, err
	}
	r.cache[key] = p
	r.logger.Debug("provider created", "kind", cfg.Kind, "model", cfg.Model)
	return p, nil
}

// Validate checks that a config can be served without building a client.
func (r *Registry) Validate(cfg workflow.ProviderConfig) error {
	if !workflow.ValidProviderKind(cfg.Kind) {
		return ucerrors.Newf(ucerrors.CodeConfigError, "unknown provider kind %q", cfg.Kind)
	}
	switch cfg.Kind {
	case workflow.ProviderSDKAgent:
		if r.creds.AnthropicKey == "" {
			return ucerrors.New(ucerrors.CodeConfigError, "anthropic api key is not set")
		}
	case workflow.ProviderGenericOpenAI, workflow.ProviderCloudCodeAssist:
		if cfg.APIURL == "" {
			return ucerrors.Newf(ucerrors.CodeConfigError, "provider kind %s requires api_url", cfg.Kind)
		}
	}
	return nil
}

// Cleanup closes and drops every cached instance.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.cache {
		if err := p.Close(); err != nil {
			r.logger.Warn("close provider", "key", key, "error", err)
		}
		delete(r.cache, key)
	}
}

func (r *Registry) newProvider(cfg workflow.ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case workflow.ProviderNone:
		return NewStatic(), nil
	case workflow.ProviderCLITool:
		return NewCLITool(cfg, r.creds.CLIPath), nil
	case workflow.ProviderSDKAgent:
		return NewAnthropic(cfg, r.creds.AnthropicKey)
	case workflow.ProviderOpenAI:
		return NewOpenAICompat(cfg.Kind, cfg, r.creds.OpenAIKey)
	case workflow.ProviderOpenRouter, workflow.ProviderGeminiOpenRouter:
		return NewOpenAICompat(cfg.Kind, cfg, r.creds.OpenRouterKey)
	case workflow.ProviderGeminiDirect, workflow.ProviderGeminiOAuth:
		return NewOpenAICompat(cfg.Kind, cfg, r.creds.GeminiKey)
	case workflow.ProviderGenericOpenAI, workflow.ProviderCloudCodeAssist,
		workflow.ProviderOllama, workflow.ProviderLMStudio:
		return NewOpenAICompat(cfg.Kind, cfg, r.creds.OpenAIKey)
	default:
		return nil, ucerrors.Newf(ucerrors.CodeConfigError, "unknown provider kind %q", cfg.Kind)
	}
}

// Detection reports the probe result for one local inference server.
type Detection struct {
	Kind      workflow.ProviderKind `json:"kind"`
	BaseURL   string                `json:"base_url"`
	Available bool                  `json:"available"`
	Models    []string              `json:"models,omitempty"`
}

// DetectLocalProviders probes the default ollama and LM Studio ports. Every
// probed kind gets an entry; servers that answered carry Available plus the
// model ids they advertise.
func DetectLocalProviders(ctx context.Context) []Detection {
	client := &http.Client{Timeout: 2 * time.Second}
	probes := []struct {
		kind workflow.ProviderKind
		base string
	}{
		{workflow.ProviderOllama, ollamaBaseURL},
		{workflow.ProviderLMStudio, lmStudioBaseURL},
	}

	detections := make([]Detection, 0, len(probes))
	for _, probe := range probes {
		detections = append(detections, detectServer(ctx, client, probe.kind, probe.base))
	}
	return detections
}

// detectServer hits the server's /models endpoint and collects the model
// ids from the OpenAI-style list response.
func detectServer(ctx context.Context, client *http.Client, kind workflow.ProviderKind, base string) Detection {
	d := Detection{Kind: kind, BaseURL: base}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return d
	}
	resp, err := client.Do(req)
	if err != nil {
		return d
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return d
	}
	d.Available = true

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return d
	}
	for _, m := range gjson.GetBytes(body, "data.#.id").Array() {
		if id := m.String(); id != "" {
			d.Models = append(d.Models, id)
		}
	}
	return d
}
