// Package config provides configuration management for ultraclaude.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// EngineDir is the ultraclaude configuration directory
	EngineDir = ".ultraclaude"
)

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres"
	Driver string `yaml:"driver"`

	// Path is the sqlite database file, relative to the engine dir
	Path string `yaml:"path,omitempty"`

	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig holds postgres connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds a postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BudgetConfig holds default budget limits in USD. Zero means unlimited.
type BudgetConfig struct {
	GlobalLimit    float64 `yaml:"global_limit"`
	ProjectLimit   float64 `yaml:"project_limit"`
	ExecutionLimit float64 `yaml:"execution_limit"`
}

// ApprovalConfig holds approval gating settings.
type ApprovalConfig struct {
	// TimeoutSeconds before a pending approval is auto-rejected
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the approval timeout as a duration.
func (a ApprovalConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ProviderDefaults holds fallback provider settings applied when a phase
// leaves them unset.
type ProviderDefaults struct {
	// CLIPath is the agent CLI binary for cli_tool providers
	CLIPath string `yaml:"cli_path"`

	// AnthropicAPIKeyEnv names the env var holding the anthropic key
	AnthropicAPIKeyEnv string `yaml:"anthropic_api_key_env"`

	// OpenAIAPIKeyEnv names the env var holding the openai-compatible key
	OpenAIAPIKeyEnv string `yaml:"openai_api_key_env"`

	// OpenRouterAPIKeyEnv names the env var holding the openrouter key
	OpenRouterAPIKeyEnv string `yaml:"openrouter_api_key_env"`

	// GeminiAPIKeyEnv names the env var holding the gemini key
	GeminiAPIKeyEnv string `yaml:"gemini_api_key_env"`
}

// Config represents the ultraclaude configuration.
type Config struct {
	// Version is the config file version
	Version int `yaml:"version"`

	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Budget    BudgetConfig     `yaml:"budget"`
	Approval  ApprovalConfig   `yaml:"approval"`
	Providers ProviderDefaults `yaml:"providers"`

	// ArtifactsDir is where artifact content files are mirrored,
	// relative to the engine dir when not absolute
	ArtifactsDir string `yaml:"artifacts_dir"`

	// TemplatesDir holds user workflow template YAML files,
	// relative to the engine dir when not absolute
	TemplatesDir string `yaml:"templates_dir"`

	// LogLevel is debug, info, warn, or error
	LogLevel string `yaml:"log_level"`

	// EventBufferSize is the per-subscriber event channel depth
	EventBufferSize int `yaml:"event_buffer_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "ultraclaude.db",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "ultraclaude",
				User:     "ultraclaude",
				SSLMode:  "disable",
			},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8799,
		},
		Budget: BudgetConfig{},
		Approval: ApprovalConfig{
			TimeoutSeconds: 3600,
		},
		Providers: ProviderDefaults{
			CLIPath:             "claude",
			AnthropicAPIKeyEnv:  "ANTHROPIC_API_KEY",
			OpenAIAPIKeyEnv:     "OPENAI_API_KEY",
			OpenRouterAPIKeyEnv: "OPENROUTER_API_KEY",
			GeminiAPIKeyEnv:     "GEMINI_API_KEY",
		},
		ArtifactsDir:    "artifacts",
		TemplatesDir:    "templates",
		LogLevel:        "info",
		EventBufferSize: 100,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Budget.GlobalLimit < 0 || c.Budget.ProjectLimit < 0 || c.Budget.ExecutionLimit < 0 {
		return fmt.Errorf("budget limits must be non-negative")
	}
	if c.Approval.TimeoutSeconds < 0 {
		return fmt.Errorf("approval timeout must be non-negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// EnginePath returns the engine directory under root.
func EnginePath(root string) string {
	return filepath.Join(root, EngineDir)
}

// ResolvePath resolves a configured path against the engine dir unless it is
// already absolute.
func (c *Config) ResolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(EnginePath(root), path)
}

// Save writes the config to the engine dir under root.
func (c *Config) Save(root string) error {
	dir := EnginePath(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
