package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

const templateColumns = "id, name, description, phases, max_iterations, iteration_behavior, failure_behavior, budget_limit, is_global, project_id, is_default, created_at, updated_at"

// SaveTemplate upserts a workflow template.
func (s *Store) SaveTemplate(t *workflow.Template) error {
	phases, err := json.Marshal(t.Phases)
	if err != nil {
		return fmt.Errorf("marshal phases: %w", err)
	}

	_, err = s.Exec(s.rebind(`
		INSERT INTO templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			phases = excluded.phases,
			max_iterations = excluded.max_iterations,
			iteration_behavior = excluded.iteration_behavior,
			failure_behavior = excluded.failure_behavior,
			budget_limit = excluded.budget_limit,
			is_global = excluded.is_global,
			project_id = excluded.project_id,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at
	`),
		t.ID, t.Name, t.Description, string(phases), t.MaxIterations,
		string(t.IterationBehavior), string(t.FailureBehavior), t.BudgetLimit,
		boolToInt(t.IsGlobal), t.ProjectID, boolToInt(t.IsDefault),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// GetTemplate loads a template by id.
func (s *Store) GetTemplate(id string) (*workflow.Template, error) {
	row := s.QueryRow(s.rebind("SELECT "+templateColumns+" FROM templates WHERE id = ?"), id)
	t, err := scanTemplate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ucerrors.ErrTemplateNotFound(id)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates visible to a project: its own plus globals.
// Empty projectID lists only global templates.
func (s *Store) ListTemplates(projectID string) ([]workflow.Template, error) {
	rows, err := s.Query(s.rebind(
		"SELECT "+templateColumns+" FROM templates WHERE is_global = 1 OR project_id = ? ORDER BY name"), projectID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []workflow.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// DeleteTemplate removes a template. Existing executions keep their snapshot.
func (s *Store) DeleteTemplate(id string) error {
	if _, err := s.Exec(s.rebind("DELETE FROM templates WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// ResolveDefaultTemplate finds the default template for a project.
// Project-scoped defaults win over global defaults.
func (s *Store) ResolveDefaultTemplate(projectID string) (*workflow.Template, error) {
	if projectID != "" {
		row := s.QueryRow(s.rebind(
			"SELECT "+templateColumns+" FROM templates WHERE is_default = 1 AND project_id = ? LIMIT 1"), projectID)
		t, err := scanTemplate(row.Scan)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resolve project default template: %w", err)
		}
	}

	row := s.QueryRow("SELECT " + templateColumns + " FROM templates WHERE is_default = 1 AND is_global = 1 LIMIT 1")
	t, err := scanTemplate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ucerrors.ErrNoDefaultTemplate()
		}
		return nil, fmt.Errorf("resolve default template: %w", err)
	}
	return t, nil
}

// SeedBuiltinTemplate inserts the builtin default pipeline if it is absent.
// An existing row is left untouched so local edits survive restarts.
func (s *Store) SeedBuiltinTemplate() error {
	builtin := workflow.BuiltinTemplate()
	var exists int
	err := s.QueryRow(s.rebind("SELECT COUNT(*) FROM templates WHERE id = ?"), builtin.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check builtin template: %w", err)
	}
	if exists > 0 {
		return nil
	}
	return s.SaveTemplate(builtin)
}

func scanTemplate(scan func(dest ...any) error) (*workflow.Template, error) {
	var t workflow.Template
	var phases, iterBehavior, failBehavior, createdAt, updatedAt string
	var isGlobal, isDefault int

	err := scan(&t.ID, &t.Name, &t.Description, &phases, &t.MaxIterations,
		&iterBehavior, &failBehavior, &t.BudgetLimit,
		&isGlobal, &t.ProjectID, &isDefault, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(phases), &t.Phases); err != nil {
		return nil, fmt.Errorf("unmarshal phases: %w", err)
	}
	t.IterationBehavior = workflow.IterationBehavior(iterBehavior)
	t.FailureBehavior = workflow.FailureBehavior(failBehavior)
	t.IsGlobal = isGlobal != 0
	t.IsDefault = isDefault != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
