package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads configuration for the project rooted at root.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.ultraclaude/config.yaml) - optional
//  3. Project config (<root>/.ultraclaude/config.yaml) - optional
//  4. Environment variables (ULTRACLAUDE_*)
func Load(root string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, EngineDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(EnginePath(root), ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(cfg, projectPath); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFromFile overlays configuration from a YAML file onto cfg. YAML merge
// semantics apply: only fields present in the file replace existing values.
func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvVars applies ULTRACLAUDE_* environment overrides.
func applyEnvVars(cfg *Config) {
	if v := os.Getenv("ULTRACLAUDE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ULTRACLAUDE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ULTRACLAUDE_DB_HOST"); v != "" {
		cfg.Database.Postgres.Host = v
	}
	if v := os.Getenv("ULTRACLAUDE_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Postgres.Port = n
		}
	}
	if v := os.Getenv("ULTRACLAUDE_DB_NAME"); v != "" {
		cfg.Database.Postgres.Database = v
	}
	if v := os.Getenv("ULTRACLAUDE_DB_USER"); v != "" {
		cfg.Database.Postgres.User = v
	}
	if v := os.Getenv("ULTRACLAUDE_DB_PASSWORD"); v != "" {
		cfg.Database.Postgres.Password = v
	}
	if v := os.Getenv("ULTRACLAUDE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ULTRACLAUDE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("ULTRACLAUDE_GLOBAL_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.GlobalLimit = f
		}
	}
	if v := os.Getenv("ULTRACLAUDE_PROJECT_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.ProjectLimit = f
		}
	}
	if v := os.Getenv("ULTRACLAUDE_EXECUTION_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.ExecutionLimit = f
		}
	}
	if v := os.Getenv("ULTRACLAUDE_APPROVAL_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Approval.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("ULTRACLAUDE_CLI_PATH"); v != "" {
		cfg.Providers.CLIPath = v
	}
	if v := os.Getenv("ULTRACLAUDE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
