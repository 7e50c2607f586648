package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// outcomeKind classifies how one iteration pass ended.
type outcomeKind int

const (
	outcomeDone outcomeKind = iota
	outcomeIterate
	outcomePaused
	outcomeFailed
	outcomeBudget
	outcomeCancelled
)

type outcome struct {
	kind   outcomeKind
	reason string
}

// run drives the execution until it pauses or reaches a terminal state.
// Exactly one terminal status_update is emitted per execution.
func (e *Engine) run(ctx context.Context, exec *workflow.Execution) (*workflow.Execution, error) {
	tpl := exec.Template
	if tpl == nil {
		t, err := e.store.GetTemplate(exec.TemplateID)
		if err != nil {
			e.setStatus(exec, workflow.StatusFailed, "template snapshot missing")
			return exec, ucerrors.New(ucerrors.CodeConfigError, "execution has no template snapshot").WithCause(err)
		}
		tpl = t
		exec.Template = t
	}
	tpl.Normalize()

	if exec.StartedAt == nil {
		now := time.Now()
		exec.StartedAt = &now
	}
	resumeFrom := ""
	if exec.Status == workflow.StatusPaused {
		resumeFrom = exec.CurrentPhaseID
	}
	e.setStatus(exec, workflow.StatusRunning, "")

	for {
		out := e.runIteration(ctx, exec, tpl, resumeFrom)
		resumeFrom = ""

		switch out.kind {
		case outcomeDone:
			e.setStatus(exec, workflow.StatusCompleted, "")
			e.logger.Info("execution completed",
				"execution", exec.ID,
				"iterations", exec.Iteration,
				"cost_usd", exec.TotalCostUSD)
			return exec, nil
		case outcomeIterate:
			e.logger.Info("starting iteration",
				"execution", exec.ID, "iteration", exec.Iteration)
			continue
		case outcomePaused:
			// Status was set by the pause path; no terminal event.
			return exec, nil
		case outcomeFailed:
			e.setStatus(exec, workflow.StatusFailed, out.reason)
			return exec, nil
		case outcomeBudget:
			e.setStatus(exec, workflow.StatusBudgetExceeded, out.reason)
			return exec, nil
		case outcomeCancelled:
			e.setStatus(exec, workflow.StatusCancelled, "cancelled")
			return exec, nil
		}
	}
}

// runIteration walks the sequencing plan once. resumeFrom skips groups
// before the named phase when re-entering a paused execution.
func (e *Engine) runIteration(ctx context.Context, exec *workflow.Execution, tpl *workflow.Template, resumeFrom string) outcome {
	groups := workflow.OrderPhases(tpl.Phases)
	skipping := resumeFrom != ""
	iterate := false

	i := 0
	for i < len(groups) {
		g := groups[i]
		if skipping {
			if groupContains(g, resumeFrom) {
				skipping = false
			} else {
				i++
				continue
			}
		}

		if ctx.Err() != nil {
			return outcome{kind: outcomeCancelled}
		}
		if err := e.tracker.Check(ctx, exec.ID, exec.ProjectID, exec.BudgetLimit, 0); err != nil {
			if ucerrors.HasCode(err, ucerrors.CodeBudgetExceeded) {
				return outcome{kind: outcomeBudget, reason: err.Error()}
			}
			return outcome{kind: outcomeFailed, reason: err.Error()}
		}

		exec.CurrentPhaseID = g.Phases[0].ID
		if err := e.store.SaveExecution(exec); err != nil {
			e.logger.Error("persist current phase", "execution", exec.ID, "error", err)
		}

		if exec.Interactive {
			if p, ok := sensitiveMember(g, i == 0, exec.Iteration); ok {
				proceed, out := e.gate(ctx, exec, p)
				if !proceed {
					return out
				}
			}
		}

		res := e.runGroup(ctx, exec, tpl, g)
		switch {
		case res.err != nil && ucerrors.HasCode(res.err, ucerrors.CodeCancelled),
			ctx.Err() != nil:
			return outcome{kind: outcomeCancelled}
		case res.err != nil && ucerrors.HasCode(res.err, ucerrors.CodeBudgetExceeded):
			return outcome{kind: outcomeBudget, reason: res.err.Error()}
		}

		if res.iterate {
			iterate = true
		}
		if res.failed {
			reason := res.reason
			if reason == "" {
				reason = fmt.Sprintf("phase %s failed", g.Phases[0].ID)
			}
			if !exec.Interactive {
				return outcome{kind: outcomeFailed, reason: reason}
			}
			if e.pauseForDecision(ctx, exec, g.Phases[0].ID, reason) {
				// Approved: retry the same group.
				continue
			}
			return outcome{kind: outcomePaused}
		}
		i++
	}

	// Post-debit check: the final phase may have overshot the limit.
	if err := e.tracker.Check(ctx, exec.ID, exec.ProjectID, exec.BudgetLimit, 0); err != nil {
		if ucerrors.HasCode(err, ucerrors.CodeBudgetExceeded) {
			return outcome{kind: outcomeBudget, reason: err.Error()}
		}
		return outcome{kind: outcomeFailed, reason: err.Error()}
	}

	if iterate {
		return e.nextIteration(ctx, exec, tpl)
	}
	return outcome{kind: outcomeDone}
}

// nextIteration decides whether a requested iteration re-runs the plan.
func (e *Engine) nextIteration(ctx context.Context, exec *workflow.Execution, tpl *workflow.Template) outcome {
	if exec.Iteration >= tpl.MaxIterations {
		return outcome{
			kind:   outcomeFailed,
			reason: fmt.Sprintf("no success after %d iterations", exec.Iteration),
		}
	}

	if tpl.IterationBehavior == workflow.PauseForApproval {
		msg := fmt.Sprintf("Iteration %d requested (max %d). Approve to continue.", exec.Iteration+1, tpl.MaxIterations)
		e.setStatus(exec, workflow.StatusAwaitingApproval, "")
		approved, err := e.approvals.Request(ctx, exec.ID, exec.CurrentPhaseID, msg, 0)
		if err != nil || !approved {
			e.setStatus(exec, workflow.StatusPaused, "iteration not approved")
			return outcome{kind: outcomePaused}
		}
		e.setStatus(exec, workflow.StatusRunning, "")
	}

	exec.Iteration++
	exec.UpdatedAt = time.Now()
	if err := e.store.SaveExecution(exec); err != nil {
		e.logger.Error("persist iteration bump", "execution", exec.ID, "error", err)
	}
	return outcome{kind: outcomeIterate}
}

// gate blocks a sensitive phase on human approval. Returns proceed=true
// when approved, or proceed=false with the outcome to surface.
func (e *Engine) gate(ctx context.Context, exec *workflow.Execution, phase workflow.Phase) (bool, outcome) {
	msg := fmt.Sprintf("Approval required before phase %q (%s).", phase.Name, phase.Role)
	e.setStatus(exec, workflow.StatusAwaitingApproval, "")

	approved, err := e.approvals.Request(ctx, exec.ID, phase.ID, msg, 0)
	if err != nil {
		return false, outcome{kind: outcomeFailed, reason: err.Error()}
	}
	if ctx.Err() != nil {
		return false, outcome{kind: outcomeCancelled}
	}
	if approved {
		e.setStatus(exec, workflow.StatusRunning, "")
		return true, outcome{}
	}

	reason := fmt.Sprintf("approval rejected for phase %s", phase.ID)
	if e.pauseForDecision(ctx, exec, phase.ID, reason) {
		return true, outcome{}
	}
	return false, outcome{kind: outcomePaused}
}

// pauseForDecision parks the execution in paused and posts a resume
// request. Returns true when a human approves resuming; the execution
// stays paused otherwise.
func (e *Engine) pauseForDecision(ctx context.Context, exec *workflow.Execution, phaseID, reason string) bool {
	e.setStatus(exec, workflow.StatusPaused, reason)

	msg := fmt.Sprintf("Execution paused: %s. Approve to resume, reject to keep it paused.", reason)
	approved, err := e.approvals.Request(ctx, exec.ID, phaseID, msg, 0)
	if err != nil || !approved || ctx.Err() != nil {
		return false
	}
	e.setStatus(exec, workflow.StatusRunning, "")
	return true
}

// groupResult aggregates the terminal states of a sequencing group.
type groupResult struct {
	failed  bool
	iterate bool
	reason  string
	err     error
}

// runGroup executes one group, concurrently when it has parallel members.
// The group joins on all members; its failure state is the worst member
// outcome (failed > skipped > completed).
func (e *Engine) runGroup(ctx context.Context, exec *workflow.Execution, tpl *workflow.Template, g workflow.Group) groupResult {
	if !g.Parallel() {
		return e.runPhase(ctx, exec, tpl, g.Phases[0])
	}

	results := make([]groupResult, len(g.Phases))
	var eg errgroup.Group
	for idx, p := range g.Phases {
		eg.Go(func() error {
			results[idx] = e.runPhase(ctx, exec, tpl, p)
			return nil
		})
	}
	eg.Wait()

	var agg groupResult
	for _, r := range results {
		if r.iterate {
			agg.iterate = true
		}
		if r.failed && !agg.failed {
			agg.failed = true
			agg.reason = r.reason
		}
		if r.err != nil && agg.err == nil {
			agg.err = r.err
		}
		// Cancellation and budget errors outrank other member errors.
		if r.err != nil && (ucerrors.HasCode(r.err, ucerrors.CodeCancelled) || ucerrors.HasCode(r.err, ucerrors.CodeBudgetExceeded)) {
			agg.err = r.err
		}
	}
	return agg
}

// runPhase executes one phase and applies the template's failure policy:
// a can_iterate pattern miss requests an iteration, fallback_provider
// re-runs once on the fallback config, skip_phase records a skip.
func (e *Engine) runPhase(ctx context.Context, exec *workflow.Execution, tpl *workflow.Template, phase workflow.Phase) groupResult {
	pe, err := e.execOnce(ctx, exec, phase, phase.Provider)
	if err == nil && pe.Status == workflow.PhaseCompleted {
		return groupResult{}
	}

	if err != nil && (ucerrors.HasCode(err, ucerrors.CodeCancelled) || ucerrors.HasCode(err, ucerrors.CodeBudgetExceeded)) {
		return groupResult{err: err}
	}

	// A review-style phase that missed its success pattern asks for
	// another iteration instead of tripping the failure policy.
	if err == nil && phase.CanIterate && pe.Status == workflow.PhaseFailed {
		return groupResult{iterate: true}
	}

	if tpl.FailureBehavior == workflow.FallbackProvider && phase.Provider.Fallback != nil {
		fb := *phase.Provider.Fallback
		e.logger.Info("re-running phase on fallback provider",
			"execution", exec.ID, "phase", phase.ID, "kind", fb.Kind, "model", fb.Model)
		pe, err = e.execOnce(ctx, exec, phase, fb)
		if err == nil && pe.Status == workflow.PhaseCompleted {
			return groupResult{}
		}
		if err != nil && (ucerrors.HasCode(err, ucerrors.CodeCancelled) || ucerrors.HasCode(err, ucerrors.CodeBudgetExceeded)) {
			return groupResult{err: err}
		}
		// Still failed: escalate to pause/fail below.
	}

	if tpl.FailureBehavior == workflow.SkipPhase && phase.CanSkip {
		pe.Status = workflow.PhaseSkipped
		if saveErr := e.store.SavePhaseExecution(pe); saveErr != nil {
			e.logger.Error("persist skipped phase", "execution", exec.ID, "phase", phase.ID, "error", saveErr)
		}
		e.logger.Info("phase skipped after failure", "execution", exec.ID, "phase", phase.ID)
		return groupResult{}
	}

	reason := pe.Error
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return groupResult{failed: true, reason: fmt.Sprintf("phase %s: %s", phase.ID, reason)}
}

// execOnce runs the phase once via the runner and folds the resulting
// usage and artifact into the execution record.
func (e *Engine) execOnce(ctx context.Context, exec *workflow.Execution, phase workflow.Phase, cfg workflow.ProviderConfig) (*workflow.PhaseExecution, error) {
	pe, err := e.runner.Run(ctx, exec, phase, cfg)
	if pe != nil {
		e.accumulate(exec, pe)
	}
	return pe, err
}

// accumulate folds a finished phase execution into the execution totals.
// Serialized because parallel group members share one execution record.
func (e *Engine) accumulate(exec *workflow.Execution, pe *workflow.PhaseExecution) {
	e.accMu.Lock()
	defer e.accMu.Unlock()

	exec.TotalCostUSD += pe.CostUSD
	exec.TotalInputTokens += pe.TokensInput
	exec.TotalOutputTokens += pe.TokensOutput
	if pe.OutputArtifactID != "" {
		exec.ArtifactIDs = append(exec.ArtifactIDs, pe.OutputArtifactID)
	}
	exec.UpdatedAt = time.Now()
	if err := e.store.SaveExecution(exec); err != nil {
		e.logger.Error("persist execution totals", "execution", exec.ID, "error", err)
	}
}

// sensitiveMember returns the first phase in the group that requires an
// interactive approval gate: any reviewer role, the implementer role, or
// the first phase of a re-iteration.
func sensitiveMember(g workflow.Group, firstGroup bool, iteration int) (workflow.Phase, bool) {
	for _, p := range g.Phases {
		if strings.HasPrefix(p.Role, "reviewer") || p.Role == workflow.RoleImplementer {
			return p, true
		}
		if firstGroup && iteration > 1 {
			return p, true
		}
	}
	return workflow.Phase{}, false
}

func groupContains(g workflow.Group, phaseID string) bool {
	for _, p := range g.Phases {
		if p.ID == phaseID {
			return true
		}
	}
	return false
}
