package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spfcraze/ultraclaude/internal/db/driver"
)

// Budget scopes. Global uses the fixed scope id "global".
const (
	ScopeExecution = "execution"
	ScopeProject   = "project"
	ScopeGlobal    = "global"

	GlobalScopeID = "global"
)

// BudgetRow is the persisted usage counter for one scope.
type BudgetRow struct {
	Scope          string    `json:"scope"`
	ScopeID        string    `json:"scope_id"`
	LimitUSD       float64   `json:"limit_usd"`
	UsedUSD        float64   `json:"used_usd"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	ExecutionCount int64     `json:"execution_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Remaining returns the remaining budget; a zero limit means unlimited.
func (b BudgetRow) Remaining() float64 {
	if b.LimitUSD <= 0 {
		return 0
	}
	return b.LimitUSD - b.UsedUSD
}

const budgetColumns = "scope, scope_id, limit_usd, used_usd, input_tokens, output_tokens, execution_count, updated_at"

// GetBudget returns the counter for a scope, or a zero row when absent.
func (s *Store) GetBudget(scope, scopeID string) (*BudgetRow, error) {
	row := s.QueryRow(s.rebind(
		"SELECT "+budgetColumns+" FROM budgets WHERE scope = ? AND scope_id = ?"), scope, scopeID)

	b, err := scanBudget(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &BudgetRow{Scope: scope, ScopeID: scopeID}, nil
		}
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// SetBudgetLimit upserts the spending limit for a scope. Usage counters are
// preserved.
func (s *Store) SetBudgetLimit(scope, scopeID string, limitUSD float64) error {
	_, err := s.Exec(s.rebind(`
		INSERT INTO budgets (scope, scope_id, limit_usd, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, scope_id) DO UPDATE SET
			limit_usd = excluded.limit_usd,
			updated_at = excluded.updated_at
	`), scope, scopeID, limitUSD, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set budget limit: %w", err)
	}
	return nil
}

// BudgetDelta is one usage increment applied to a scope.
type BudgetDelta struct {
	Scope          string
	ScopeID        string
	CostUSD        float64
	InputTokens    int64
	OutputTokens   int64
	ExecutionCount int64
}

// AddBudgetUsage applies all deltas in a single transaction so the three
// scopes never drift apart.
func (s *Store) AddBudgetUsage(ctx context.Context, deltas []BudgetDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	now := formatTime(time.Now())

	return s.RunInTx(ctx, func(tx driver.Tx) error {
		for _, d := range deltas {
			_, err := tx.Exec(ctx, s.rebind(`
				INSERT INTO budgets (scope, scope_id, used_usd, input_tokens, output_tokens, execution_count, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(scope, scope_id) DO UPDATE SET
					used_usd = budgets.used_usd + excluded.used_usd,
					input_tokens = budgets.input_tokens + excluded.input_tokens,
					output_tokens = budgets.output_tokens + excluded.output_tokens,
					execution_count = budgets.execution_count + excluded.execution_count,
					updated_at = excluded.updated_at
			`), d.Scope, d.ScopeID, d.CostUSD, d.InputTokens, d.OutputTokens, d.ExecutionCount, now)
			if err != nil {
				return fmt.Errorf("add budget usage %s/%s: %w", d.Scope, d.ScopeID, err)
			}
		}
		return nil
	})
}

// ListBudgets returns all counters for a scope, largest spenders first.
func (s *Store) ListBudgets(scope string) ([]BudgetRow, error) {
	rows, err := s.Query(s.rebind(
		"SELECT "+budgetColumns+" FROM budgets WHERE scope = ? ORDER BY used_usd DESC"), scope)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []BudgetRow
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func scanBudget(scan func(dest ...any) error) (*BudgetRow, error) {
	var b BudgetRow
	var updatedAt string
	err := scan(&b.Scope, &b.ScopeID, &b.LimitUSD, &b.UsedUSD,
		&b.InputTokens, &b.OutputTokens, &b.ExecutionCount, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}
