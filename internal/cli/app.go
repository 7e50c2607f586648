package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spfcraze/ultraclaude/internal/approval"
	"github.com/spfcraze/ultraclaude/internal/artifact"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/config"
	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/db/driver"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/orchestrator"
	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/runner"
)

// app wires the engine from config. Every command that touches the store
// builds one and closes it when done.
type app struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger

	store     *db.Store
	bus       *events.PersistentBus
	tracker   *budget.Tracker
	artifacts *artifact.Store
	approvals *approval.Coordinator
	registry  *provider.Registry
	engine    *orchestrator.Engine
}

// newApp loads config from the current directory and opens the engine.
func newApp() (*app, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var store *db.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = db.OpenWithDialect(cfg.Database.Postgres.DSN(), driver.DialectPostgres)
	default:
		store, err = db.Open(cfg.ResolvePath(root, cfg.Database.Path))
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.SeedBuiltinTemplate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed builtin template: %w", err)
	}

	bus := events.NewPersistentBus(store, logger, events.WithBufferSize(cfg.EventBufferSize))
	tracker := budget.NewTracker(store, budget.Limits{
		Global:    cfg.Budget.GlobalLimit,
		Project:   cfg.Budget.ProjectLimit,
		Execution: cfg.Budget.ExecutionLimit,
	}, logger)
	artifacts := artifact.NewStore(store,
		artifact.WithLogger(logger),
		artifact.WithBaseDir(cfg.ResolvePath(root, cfg.ArtifactsDir)))
	approvals := approval.NewCoordinator(store, bus,
		approval.WithLogger(logger),
		approval.WithDefaultTimeout(cfg.Approval.Timeout()))
	registry := provider.NewRegistry(provider.Credentials{
		AnthropicKey:  os.Getenv(cfg.Providers.AnthropicAPIKeyEnv),
		OpenAIKey:     os.Getenv(cfg.Providers.OpenAIAPIKeyEnv),
		OpenRouterKey: os.Getenv(cfg.Providers.OpenRouterAPIKeyEnv),
		GeminiKey:     os.Getenv(cfg.Providers.GeminiAPIKeyEnv),
		CLIPath:       cfg.Providers.CLIPath,
	}, provider.WithRegistryLogger(logger))

	run := runner.New(store, artifacts, tracker, registry, bus, runner.WithLogger(logger))
	engine := orchestrator.New(store, run, tracker, approvals, bus, orchestrator.WithLogger(logger))

	return &app{
		root:      root,
		cfg:       cfg,
		logger:    logger,
		store:     store,
		bus:       bus,
		tracker:   tracker,
		artifacts: artifacts,
		approvals: approvals,
		registry:  registry,
		engine:    engine,
	}, nil
}

// Close releases provider clients, the bus, and the database.
func (a *app) Close() {
	a.registry.Cleanup()
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}

// serverBaseURL is the API address commands use to reach a running daemon.
func (a *app) serverBaseURL() string {
	return "http://" + a.cfg.Server.Addr()
}
