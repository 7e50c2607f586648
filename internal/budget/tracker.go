package budget

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
)

// Limits are the configured defaults. Zero means unlimited at that scope.
type Limits struct {
	Global    float64
	Project   float64
	Execution float64
}

// Tracker checks and records spending across the three scopes. Check and
// Record are serialized by a mutex so concurrent phases of one engine
// process cannot jointly overshoot a limit between check and debit.
type Tracker struct {
	store  *db.Store
	limits Limits
	logger *slog.Logger

	mu sync.Mutex
}

// NewTracker creates a budget tracker.
func NewTracker(store *db.Store, limits Limits, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, limits: limits, logger: logger}
}

// Usage is the spend recorded for one provider call.
type Usage struct {
	ExecutionID  string
	ProjectID    string
	CostUSD      float64
	InputTokens  int
	OutputTokens int
}

// Check returns CodeBudgetExceeded when spending `additional` USD would
// cross any scope's limit. executionLimit overrides the default execution
// limit when non-nil; an explicit zero limit blocks all spending, while a
// nil override with a zero default means unlimited.
func (t *Tracker) Check(ctx context.Context, executionID, projectID string, executionLimit *float64, additional float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(executionID, projectID, executionLimit, additional)
}

func (t *Tracker) checkLocked(executionID, projectID string, executionLimit *float64, additional float64) error {
	execLimit := t.limits.Execution
	execBound := false
	if executionLimit != nil {
		execLimit = *executionLimit
		execBound = true
	}

	scopes := []struct {
		scope   string
		scopeID string
		limit   float64
		bound   bool
	}{
		{db.ScopeExecution, executionID, execLimit, execBound},
		{db.ScopeProject, projectID, t.limits.Project, false},
		{db.ScopeGlobal, db.GlobalScopeID, t.limits.Global, false},
	}

	for _, sc := range scopes {
		if sc.scopeID == "" {
			continue
		}
		row, err := t.store.GetBudget(sc.scope, sc.scopeID)
		if err != nil {
			return err
		}
		limit := sc.limit
		bound := sc.bound
		if row.LimitUSD > 0 {
			limit = row.LimitUSD
			bound = true
		}
		if limit <= 0 && !bound {
			continue
		}
		if limit == 0 || row.UsedUSD+additional > limit {
			t.logger.Warn("budget exceeded",
				"scope", sc.scope,
				"scope_id", sc.scopeID,
				"used", row.UsedUSD,
				"limit", limit,
			)
			return ucerrors.ErrBudgetExceeded(sc.scope, limit-row.UsedUSD)
		}
	}
	return nil
}

// Record debits all three scopes atomically.
func (t *Tracker) Record(ctx context.Context, u Usage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	deltas := []db.BudgetDelta{{
		Scope:        db.ScopeExecution,
		ScopeID:      u.ExecutionID,
		CostUSD:      u.CostUSD,
		InputTokens:  int64(u.InputTokens),
		OutputTokens: int64(u.OutputTokens),
	}, {
		Scope:        db.ScopeGlobal,
		ScopeID:      db.GlobalScopeID,
		CostUSD:      u.CostUSD,
		InputTokens:  int64(u.InputTokens),
		OutputTokens: int64(u.OutputTokens),
	}}
	if u.ProjectID != "" {
		deltas = append(deltas, db.BudgetDelta{
			Scope:        db.ScopeProject,
			ScopeID:      u.ProjectID,
			CostUSD:      u.CostUSD,
			InputTokens:  int64(u.InputTokens),
			OutputTokens: int64(u.OutputTokens),
		})
	}
	return t.store.AddBudgetUsage(ctx, deltas)
}

// CountExecution bumps the execution counters at project and global scope.
// Called once when an execution is created.
func (t *Tracker) CountExecution(ctx context.Context, projectID string) error {
	deltas := []db.BudgetDelta{
		{Scope: db.ScopeGlobal, ScopeID: db.GlobalScopeID, ExecutionCount: 1},
	}
	if projectID != "" {
		deltas = append(deltas, db.BudgetDelta{
			Scope: db.ScopeProject, ScopeID: projectID, ExecutionCount: 1,
		})
	}
	return t.store.AddBudgetUsage(ctx, deltas)
}

// SetLimit persists a per-scope limit override.
func (t *Tracker) SetLimit(scope, scopeID string, limitUSD float64) error {
	return t.store.SetBudgetLimit(scope, scopeID, limitUSD)
}

// Summary returns the stored counters for one scope id.
func (t *Tracker) Summary(scope, scopeID string) (*db.BudgetRow, error) {
	return t.store.GetBudget(scope, scopeID)
}

// List returns all counters at a scope.
func (t *Tracker) List(scope string) ([]db.BudgetRow, error) {
	return t.store.ListBudgets(scope)
}
