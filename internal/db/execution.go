package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// SaveExecution upserts an execution row. Phase executions are saved
// separately via SavePhaseExecution.
func (s *Store) SaveExecution(e *workflow.Execution) error {
	snapshot, err := json.Marshal(e.Template)
	if err != nil {
		return fmt.Errorf("marshal template snapshot: %w", err)
	}
	artifactIDs, err := marshalStrings(e.ArtifactIDs)
	if err != nil {
		return fmt.Errorf("marshal artifact ids: %w", err)
	}

	_, err = s.Exec(s.rebind(`
		INSERT INTO executions (id, template_id, template_name, template_snapshot, triggered_by, project_id, project_path, task_description, status, current_phase_id, iteration, artifact_ids, total_cost_usd, total_input_tokens, total_output_tokens, budget_limit, interactive, error, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_phase_id = excluded.current_phase_id,
			iteration = excluded.iteration,
			artifact_ids = excluded.artifact_ids,
			total_cost_usd = excluded.total_cost_usd,
			total_input_tokens = excluded.total_input_tokens,
			total_output_tokens = excluded.total_output_tokens,
			budget_limit = excluded.budget_limit,
			interactive = excluded.interactive,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`),
		e.ID, e.TemplateID, e.TemplateName, string(snapshot), e.Trigger,
		e.ProjectID, e.ProjectPath, e.TaskDescription, string(e.Status),
		e.CurrentPhaseID, e.Iteration, artifactIDs,
		e.TotalCostUSD, e.TotalInputTokens, e.TotalOutputTokens,
		e.BudgetLimit, boolToInt(e.Interactive), e.Error,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		formatTimePtr(e.StartedAt), formatTimePtr(e.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// GetExecution loads an execution with its phase executions.
func (s *Store) GetExecution(id string) (*workflow.Execution, error) {
	row := s.QueryRow(s.rebind(`
		SELECT id, template_id, template_name, template_snapshot, triggered_by, project_id, project_path, task_description, status, current_phase_id, iteration, artifact_ids, total_cost_usd, total_input_tokens, total_output_tokens, budget_limit, interactive, error, created_at, updated_at, started_at, completed_at
		FROM executions WHERE id = ?
	`), id)

	e, err := scanExecution(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ucerrors.ErrExecutionNotFound(id)
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}

	phases, err := s.GetPhaseExecutions(id)
	if err != nil {
		return nil, err
	}
	e.PhaseExecutions = phases
	return e, nil
}

// ListExecutionsOpts filters ListExecutions.
type ListExecutionsOpts struct {
	ProjectID string
	Status    workflow.ExecutionStatus
	Limit     int
	Offset    int
}

// ListExecutions returns executions newest-first. Phase executions are not
// loaded; use GetExecution for the full record.
func (s *Store) ListExecutions(opts ListExecutionsOpts) ([]workflow.Execution, error) {
	var where []string
	var args []any
	if opts.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := `
		SELECT id, template_id, template_name, template_snapshot, triggered_by, project_id, project_path, task_description, status, current_phase_id, iteration, artifact_ids, total_cost_usd, total_input_tokens, total_output_tokens, budget_limit, interactive, error, created_at, updated_at, started_at, completed_at
		FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := s.Query(s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []workflow.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// DeleteExecution removes an execution and, via cascade, its phase
// executions and artifacts.
func (s *Store) DeleteExecution(id string) error {
	if _, err := s.Exec(s.rebind("DELETE FROM executions WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	return nil
}

// SavePhaseExecution upserts one (phase x iteration) run.
func (s *Store) SavePhaseExecution(pe *workflow.PhaseExecution) error {
	inputIDs, err := marshalStrings(pe.InputArtifactIDs)
	if err != nil {
		return fmt.Errorf("marshal input artifact ids: %w", err)
	}

	_, err = s.Exec(s.rebind(`
		INSERT INTO phase_executions (id, execution_id, phase_id, status, iteration, input_artifact_ids, output_artifact_id, tokens_input, tokens_output, cost_usd, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			input_artifact_ids = excluded.input_artifact_ids,
			output_artifact_id = excluded.output_artifact_id,
			tokens_input = excluded.tokens_input,
			tokens_output = excluded.tokens_output,
			cost_usd = excluded.cost_usd,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error = excluded.error
	`),
		pe.ID, pe.ExecutionID, pe.PhaseID, string(pe.Status), pe.Iteration,
		inputIDs, pe.OutputArtifactID, pe.TokensInput, pe.TokensOutput,
		pe.CostUSD, formatTimePtr(pe.StartedAt), formatTimePtr(pe.CompletedAt), pe.Error,
	)
	if err != nil {
		return fmt.Errorf("save phase execution: %w", err)
	}
	return nil
}

// GetPhaseExecutions returns all phase execution rows for an execution in
// start order.
func (s *Store) GetPhaseExecutions(executionID string) ([]workflow.PhaseExecution, error) {
	rows, err := s.Query(s.rebind(`
		SELECT id, execution_id, phase_id, status, iteration, input_artifact_ids, output_artifact_id, tokens_input, tokens_output, cost_usd, started_at, completed_at, error
		FROM phase_executions WHERE execution_id = ?
		ORDER BY started_at, id
	`), executionID)
	if err != nil {
		return nil, fmt.Errorf("query phase executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []workflow.PhaseExecution
	for rows.Next() {
		var pe workflow.PhaseExecution
		var status, inputIDs string
		var startedAt, completedAt *string
		if err := rows.Scan(&pe.ID, &pe.ExecutionID, &pe.PhaseID, &status,
			&pe.Iteration, &inputIDs, &pe.OutputArtifactID,
			&pe.TokensInput, &pe.TokensOutput, &pe.CostUSD,
			&startedAt, &completedAt, &pe.Error); err != nil {
			return nil, fmt.Errorf("scan phase execution: %w", err)
		}
		pe.Status = workflow.PhaseStatus(status)
		pe.InputArtifactIDs = unmarshalStrings(inputIDs)
		pe.StartedAt = parseTimePtr(startedAt)
		pe.CompletedAt = parseTimePtr(completedAt)
		result = append(result, pe)
	}
	return result, rows.Err()
}

// scanExecution scans one execution row; scan is row.Scan or rows.Scan.
func scanExecution(scan func(dest ...any) error) (*workflow.Execution, error) {
	var e workflow.Execution
	var snapshot, status, artifactIDs, createdAt, updatedAt string
	var startedAt, completedAt *string
	var interactive int

	err := scan(&e.ID, &e.TemplateID, &e.TemplateName, &snapshot, &e.Trigger,
		&e.ProjectID, &e.ProjectPath, &e.TaskDescription, &status,
		&e.CurrentPhaseID, &e.Iteration, &artifactIDs,
		&e.TotalCostUSD, &e.TotalInputTokens, &e.TotalOutputTokens,
		&e.BudgetLimit, &interactive, &e.Error,
		&createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if snapshot != "" && snapshot != "null" {
		var tmpl workflow.Template
		if err := json.Unmarshal([]byte(snapshot), &tmpl); err != nil {
			return nil, fmt.Errorf("unmarshal template snapshot: %w", err)
		}
		e.Template = &tmpl
	}
	e.Status = workflow.ExecutionStatus(status)
	e.ArtifactIDs = unmarshalStrings(artifactIDs)
	e.Interactive = interactive != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	e.StartedAt = parseTimePtr(startedAt)
	e.CompletedAt = parseTimePtr(completedAt)
	return &e, nil
}

func marshalStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "[]" || s == "null" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}
