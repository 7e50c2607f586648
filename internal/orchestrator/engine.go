// Package orchestrator owns the execution lifecycle: creation, phase
// sequencing, iterations, parallel groups, fallback providers, approval
// gating, and cancellation. One goroutine drives each running execution;
// the engine tracks them so cancel can signal the active phase.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spfcraze/ultraclaude/internal/approval"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/runner"
	"github.com/spfcraze/ultraclaude/internal/util"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// cancelWait bounds how long Cancel waits for the active phase to observe
// the cancellation signal.
const cancelWait = 10 * time.Second

// Engine drives workflow executions.
type Engine struct {
	store     *db.Store
	runner    *runner.Runner
	tracker   *budget.Tracker
	approvals *approval.Coordinator
	bus       events.Bus
	logger    *slog.Logger

	mu      sync.Mutex
	running map[string]*handle

	// accMu serializes execution-total updates from parallel group members.
	accMu sync.Mutex
}

// handle tracks one in-flight execution goroutine.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an execution engine.
func New(store *db.Store, r *runner.Runner, tracker *budget.Tracker, approvals *approval.Coordinator, bus events.Bus, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		runner:    r,
		tracker:   tracker,
		approvals: approvals,
		bus:       bus,
		logger:    slog.Default(),
		running:   make(map[string]*handle),
	}
	if bus == nil {
		e.bus = events.NopBus{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRequest carries the inputs for a new execution.
type CreateRequest struct {
	// TemplateID selects the template; empty resolves the project default,
	// then the global default.
	TemplateID string

	Trigger         string
	ProjectID       string
	ProjectPath     string
	TaskDescription string

	// BudgetLimit overrides the template's per-execution cap when non-nil.
	BudgetLimit *float64

	Interactive bool
}

// CreateExecution creates a pending execution with a snapshot of the
// resolved template. Template edits or deletion after this point never
// affect the execution.
func (e *Engine) CreateExecution(ctx context.Context, req CreateRequest) (*workflow.Execution, error) {
	var tpl *workflow.Template
	var err error
	if req.TemplateID != "" {
		tpl, err = e.store.GetTemplate(req.TemplateID)
	} else {
		tpl, err = e.store.ResolveDefaultTemplate(req.ProjectID)
	}
	if err != nil {
		return nil, err
	}
	tpl.Normalize()
	if err := tpl.Validate(); err != nil {
		return nil, ucerrors.New(ucerrors.CodeConfigError, "template failed validation").WithCause(err)
	}

	limit := req.BudgetLimit
	if limit == nil {
		limit = tpl.BudgetLimit
	}

	now := time.Now()
	exec := &workflow.Execution{
		ID:              util.NewID(),
		TemplateID:      tpl.ID,
		TemplateName:    tpl.Name,
		Template:        tpl,
		Trigger:         req.Trigger,
		ProjectID:       req.ProjectID,
		ProjectPath:     req.ProjectPath,
		TaskDescription: req.TaskDescription,
		Status:          workflow.StatusPending,
		Iteration:       1,
		BudgetLimit:     limit,
		Interactive:     req.Interactive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.SaveExecution(exec); err != nil {
		return nil, err
	}
	if err := e.tracker.CountExecution(ctx, req.ProjectID); err != nil {
		e.logger.Warn("count execution", "execution", exec.ID, "error", err)
	}

	e.logger.Info("execution created",
		"execution", exec.ID,
		"template", tpl.Name,
		"project", req.ProjectID,
		"interactive", req.Interactive)
	return exec, nil
}

// Get returns one execution with its phase history.
func (e *Engine) Get(id string) (*workflow.Execution, error) {
	return e.store.GetExecution(id)
}

// List returns executions matching the filter, newest first.
func (e *Engine) List(opts db.ListExecutionsOpts) ([]workflow.Execution, error) {
	return e.store.ListExecutions(opts)
}

// Start launches the sequencing loop for an execution in its own
// goroutine and returns immediately. Terminal executions are a no-op.
func (e *Engine) Start(ctx context.Context, id string) (*workflow.Execution, error) {
	exec, err := e.store.GetExecution(id)
	if err != nil {
		return nil, err
	}
	if exec.Status.IsTerminal() {
		return exec, nil
	}

	e.mu.Lock()
	if _, active := e.running[id]; active {
		e.mu.Unlock()
		return exec, nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	e.running[id] = h
	e.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			close(h.done)
			e.mu.Lock()
			delete(e.running, id)
			e.mu.Unlock()
		}()
		if _, err := e.run(runCtx, exec); err != nil {
			e.logger.Error("execution run failed", "execution", id, "error", err)
		}
	}()
	return exec, nil
}

// Run drives an execution to a paused or terminal state synchronously.
// Calling it on a terminal execution returns the current record unchanged.
func (e *Engine) Run(ctx context.Context, id string) (*workflow.Execution, error) {
	exec, err := e.store.GetExecution(id)
	if err != nil {
		return nil, err
	}
	if exec.Status.IsTerminal() {
		return exec, nil
	}

	e.mu.Lock()
	if _, active := e.running[id]; active {
		e.mu.Unlock()
		return exec, ucerrors.Newf(ucerrors.CodeInvalidState, "execution %s is already running", id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	e.running[id] = h
	e.mu.Unlock()

	defer func() {
		cancel()
		close(h.done)
		e.mu.Lock()
		delete(e.running, id)
		e.mu.Unlock()
	}()
	return e.run(runCtx, exec)
}

// Cancel transitions a running or paused execution to cancelled. It
// signals the active phase and waits (bounded) for the goroutine to
// observe the signal. Returns false when the execution is already
// terminal or unknown.
func (e *Engine) Cancel(id string) bool {
	exec, err := e.store.GetExecution(id)
	if err != nil {
		return false
	}
	if exec.Status.IsTerminal() {
		return false
	}

	e.mu.Lock()
	h := e.running[id]
	e.mu.Unlock()

	e.approvals.Cancel(id)
	if h != nil {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(cancelWait):
			e.logger.Warn("cancel wait timed out", "execution", id)
		}
		// The run goroutine normally finalizes the record. If it parked the
		// execution instead (an approval gate resolving just before the
		// context signal lands), finalize here so Cancel never leaves a
		// non-terminal record behind.
		if exec, err := e.store.GetExecution(id); err == nil && !exec.Status.IsTerminal() {
			e.setStatus(exec, workflow.StatusCancelled, "cancelled")
		}
	} else {
		// No active goroutine (paused or pending): finalize directly.
		e.setStatus(exec, workflow.StatusCancelled, "cancelled")
	}
	return true
}

// Resume re-enters the sequencing loop of a paused execution at its
// current phase.
func (e *Engine) Resume(ctx context.Context, id string) (*workflow.Execution, error) {
	exec, err := e.store.GetExecution(id)
	if err != nil {
		return nil, err
	}
	if exec.Status != workflow.StatusPaused {
		return nil, ucerrors.Newf(ucerrors.CodeInvalidState, "execution %s is %s, not paused", id, exec.Status)
	}
	e.mu.Lock()
	_, active := e.running[id]
	e.mu.Unlock()
	if active {
		return nil, ucerrors.Newf(ucerrors.CodeInvalidState, "execution %s is still winding down", id)
	}
	return e.Start(ctx, id)
}

// SkipPhase records the current phase of a paused execution as skipped
// and advances past it. Only valid when the phase is the current one,
// declares can_skip, and no approval is pending.
func (e *Engine) SkipPhase(id, phaseID string) bool {
	if e.approvals.HasPending(id) {
		return false
	}
	exec, err := e.store.GetExecution(id)
	if err != nil {
		return false
	}
	if exec.Status != workflow.StatusPaused || exec.CurrentPhaseID != phaseID {
		return false
	}
	tpl := exec.Template
	if tpl == nil {
		return false
	}
	phase := tpl.PhaseByID(phaseID)
	if phase == nil || !phase.CanSkip {
		return false
	}

	now := time.Now()
	pe := &workflow.PhaseExecution{
		ID:          util.NewID(),
		ExecutionID: exec.ID,
		PhaseID:     phaseID,
		Status:      workflow.PhaseSkipped,
		Iteration:   exec.Iteration,
		StartedAt:   &now,
		CompletedAt: &now,
	}
	if err := e.store.SavePhaseExecution(pe); err != nil {
		e.logger.Error("persist skipped phase", "execution", id, "phase", phaseID, "error", err)
		return false
	}
	e.bus.Publish(events.New(events.EventPhaseComplete, exec.ID, events.PhaseComplete{
		PhaseID: phaseID,
		Status:  string(workflow.PhaseSkipped),
	}))

	next := e.nextPhaseID(tpl, phaseID)
	if next == "" {
		// Skipping the final phase finishes the run.
		e.setStatus(exec, workflow.StatusCompleted, "")
		return true
	}
	exec.CurrentPhaseID = next
	if err := e.store.SaveExecution(exec); err != nil {
		e.logger.Error("persist execution after skip", "execution", id, "error", err)
	}
	return true
}

// nextPhaseID returns the id of the phase after the group containing
// phaseID, or empty when it was the last group.
func (e *Engine) nextPhaseID(tpl *workflow.Template, phaseID string) string {
	groups := workflow.OrderPhases(tpl.Phases)
	for i, g := range groups {
		for _, p := range g.Phases {
			if p.ID == phaseID {
				if i+1 < len(groups) {
					return groups[i+1].Phases[0].ID
				}
				return ""
			}
		}
	}
	return ""
}

// setStatus persists a status change and broadcasts it. Terminal
// transitions also stamp CompletedAt.
func (e *Engine) setStatus(exec *workflow.Execution, status workflow.ExecutionStatus, reason string) {
	exec.Status = status
	exec.UpdatedAt = time.Now()
	if status.IsTerminal() && exec.CompletedAt == nil {
		now := time.Now()
		exec.CompletedAt = &now
	}
	if reason != "" && status != workflow.StatusRunning {
		exec.Error = reason
	}
	if status == workflow.StatusRunning {
		exec.Error = ""
	}
	if err := e.store.SaveExecution(exec); err != nil {
		e.logger.Error("persist status change", "execution", exec.ID, "status", status, "error", err)
	}
	e.bus.Publish(events.New(events.EventStatusUpdate, exec.ID, events.StatusUpdate{
		Status: string(status),
		Reason: reason,
	}))
}
