package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/spfcraze/ultraclaude/internal/artifact"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/util"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Retry backoff: 0.5s doubling per attempt, capped at 10s.
const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// ProviderSource resolves provider configs to instances. Implemented by
// provider.Registry; tests substitute fakes.
type ProviderSource interface {
	Get(cfg workflow.ProviderConfig) (provider.Provider, error)
}

// Runner executes phases against providers.
type Runner struct {
	store     *db.Store
	artifacts *artifact.Store
	tracker   *budget.Tracker
	providers ProviderSource
	bus       events.Bus
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a phase runner.
func New(store *db.Store, artifacts *artifact.Store, tracker *budget.Tracker, providers ProviderSource, bus events.Bus, opts ...Option) *Runner {
	r := &Runner{
		store:     store,
		artifacts: artifacts,
		tracker:   tracker,
		providers: providers,
		bus:       bus,
		logger:    slog.Default(),
	}
	if bus == nil {
		r.bus = events.NopBus{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one phase against the given provider config (normally the
// phase's own; the orchestrator passes the fallback config on a fallback
// re-run). The returned PhaseExecution is always persisted. The error is
// non-nil only for infrastructure failures (provider errors after retries,
// budget, timeout, cancellation); a pattern-match failure returns a failed
// PhaseExecution with a nil error.
func (r *Runner) Run(ctx context.Context, exec *workflow.Execution, phase workflow.Phase, provCfg workflow.ProviderConfig) (*workflow.PhaseExecution, error) {
	now := time.Now()
	pe := &workflow.PhaseExecution{
		ID:          util.NewID(),
		ExecutionID: exec.ID,
		PhaseID:     phase.ID,
		Status:      workflow.PhaseRunning,
		Iteration:   exec.Iteration,
		StartedAt:   &now,
	}

	priorArtifacts, err := r.artifacts.GetByExecution(exec.ID)
	if err != nil {
		return r.fail(pe, err)
	}
	for _, a := range priorArtifacts {
		pe.InputArtifactIDs = append(pe.InputArtifactIDs, a.ID)
	}

	if err := r.store.SavePhaseExecution(pe); err != nil {
		return r.fail(pe, err)
	}

	r.bus.Publish(events.New(events.EventPhaseStart, exec.ID, events.PhaseStart{
		PhaseID:   phase.ID,
		Name:      phase.Name,
		Iteration: pe.Iteration,
	}))

	prompt := ExpandPrompt(phase.PromptTemplate, exec, priorArtifacts)

	// Pre-call gate: refuse to start a phase when any scope is already over
	// its limit. Overshoot from the call itself is caught by the
	// orchestrator's post-debit check.
	if err := r.tracker.Check(ctx, exec.ID, exec.ProjectID, exec.BudgetLimit, 0); err != nil {
		return r.fail(pe, err)
	}

	prov, err := r.providers.Get(provCfg)
	if err != nil {
		return r.fail(pe, err)
	}

	result, err := r.generate(ctx, prov, exec.ID, phase, prompt)
	if err != nil {
		return r.fail(pe, err)
	}

	pe.TokensInput = result.TokensInput
	pe.TokensOutput = result.TokensOutput
	model := result.ModelUsed
	if model == "" {
		model = provCfg.Model
	}
	pe.CostUSD = budget.Estimate(model, result.TokensInput, result.TokensOutput)

	if err := r.tracker.Record(ctx, budget.Usage{
		ExecutionID:  exec.ID,
		ProjectID:    exec.ProjectID,
		CostUSD:      pe.CostUSD,
		InputTokens:  result.TokensInput,
		OutputTokens: result.TokensOutput,
	}); err != nil {
		r.logger.Warn("record usage", "execution", exec.ID, "phase", phase.ID, "error", err)
	}

	completed := time.Now()
	pe.CompletedAt = &completed

	// The artifact is published only for a completed phase; a pattern miss
	// leaves output_artifact_id unset.
	if Succeeded(phase.SuccessPattern, result.Content) {
		out := &workflow.Artifact{
			ExecutionID:      exec.ID,
			PhaseExecutionID: pe.ID,
			Type:             phase.OutputType,
			Name:             phase.Name + "_output",
			Content:          result.Content,
			Metadata: map[string]string{
				"phase_id": phase.ID,
				"model":    model,
			},
		}
		if err := r.artifacts.Create(out); err != nil {
			return r.fail(pe, err)
		}
		pe.OutputArtifactID = out.ID
		pe.Status = workflow.PhaseCompleted
	} else {
		pe.Status = workflow.PhaseFailed
		pe.Error = failureMessage
	}

	if err := r.store.SavePhaseExecution(pe); err != nil {
		return pe, err
	}

	r.bus.Publish(events.New(events.EventPhaseComplete, exec.ID, events.PhaseComplete{
		PhaseID:    phase.ID,
		Status:     string(pe.Status),
		ArtifactID: pe.OutputArtifactID,
		CostUSD:    pe.CostUSD,
		Error:      pe.Error,
	}))
	return pe, nil
}

// generate calls the provider under the phase deadline, retrying transient
// failures with exponential backoff up to the phase's retry budget.
func (r *Runner) generate(ctx context.Context, prov provider.Provider, executionID string, phase workflow.Phase, prompt string) (*provider.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, phase.Timeout())
	defer cancel()

	req := provider.Request{
		Prompt: prompt,
		OnChunk: func(chunk string) {
			r.bus.Publish(events.New(events.EventPhaseOutput, executionID, events.PhaseOutput{
				PhaseID: phase.ID,
				Chunk:   chunk,
			}))
		},
		OnTodos: func(todos []provider.Todo) {
			items := make([]events.TodoItem, len(todos))
			for i, td := range todos {
				items[i] = events.TodoItem{Content: td.Content, Status: td.Status}
			}
			r.bus.Publish(events.New(events.EventTodoUpdate, executionID, events.TodoUpdate{
				PhaseID: phase.ID,
				Todos:   items,
			}))
		},
	}

	maxRetries := phase.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			r.logger.Debug("retrying phase call",
				"phase", phase.ID, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-callCtx.Done():
				return nil, ucerrors.New(ucerrors.CodeTimeout, "phase timed out during retry wait").WithCause(callCtx.Err())
			}
		}

		result, err := prov.Generate(callCtx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !provider.Transient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// fail marks the phase execution failed, persists it, and publishes the
// completion event.
func (r *Runner) fail(pe *workflow.PhaseExecution, cause error) (*workflow.PhaseExecution, error) {
	completed := time.Now()
	pe.Status = workflow.PhaseFailed
	pe.CompletedAt = &completed
	pe.Error = cause.Error()

	if err := r.store.SavePhaseExecution(pe); err != nil {
		r.logger.Error("persist failed phase execution", "phase_execution", pe.ID, "error", err)
	}

	r.bus.Publish(events.New(events.EventPhaseComplete, pe.ExecutionID, events.PhaseComplete{
		PhaseID: pe.PhaseID,
		Status:  string(pe.Status),
		Error:   pe.Error,
	}))
	return pe, cause
}
