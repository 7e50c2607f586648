package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

const artifactColumns = "id, execution_id, phase_execution_id, type, name, content, file_path, metadata, is_edited, created_at, updated_at"

// SaveArtifact upserts an artifact row.
func (s *Store) SaveArtifact(a *workflow.Artifact) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal artifact metadata: %w", err)
	}

	_, err = s.Exec(s.rebind(`
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			file_path = excluded.file_path,
			metadata = excluded.metadata,
			is_edited = excluded.is_edited,
			updated_at = excluded.updated_at
	`),
		a.ID, a.ExecutionID, a.PhaseExecutionID, string(a.Type), a.Name,
		a.Content, a.FilePath, metadata, boolToInt(a.IsEdited),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// GetArtifact loads an artifact by id.
func (s *Store) GetArtifact(id string) (*workflow.Artifact, error) {
	row := s.QueryRow(s.rebind("SELECT "+artifactColumns+" FROM artifacts WHERE id = ?"), id)
	a, err := scanArtifact(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ucerrors.Newf(ucerrors.CodeArtifactNotFound, "artifact %s not found", id)
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}

// ListArtifactsByExecution returns artifacts for an execution in creation order.
func (s *Store) ListArtifactsByExecution(executionID string) ([]workflow.Artifact, error) {
	return s.listArtifacts("execution_id", executionID)
}

// ListArtifactsByPhaseExecution returns artifacts produced by one phase run.
func (s *Store) ListArtifactsByPhaseExecution(phaseExecutionID string) ([]workflow.Artifact, error) {
	return s.listArtifacts("phase_execution_id", phaseExecutionID)
}

func (s *Store) listArtifacts(column, value string) ([]workflow.Artifact, error) {
	rows, err := s.Query(s.rebind(
		"SELECT "+artifactColumns+" FROM artifacts WHERE "+column+" = ? ORDER BY created_at, id"), value)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []workflow.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// GetLatestArtifactByType returns the newest artifact of the given type
// within an execution, or nil when none exists.
func (s *Store) GetLatestArtifactByType(executionID string, typ workflow.ArtifactType) (*workflow.Artifact, error) {
	row := s.QueryRow(s.rebind(
		"SELECT "+artifactColumns+" FROM artifacts WHERE execution_id = ? AND type = ? ORDER BY created_at DESC, id DESC LIMIT 1"),
		executionID, string(typ))
	a, err := scanArtifact(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest artifact: %w", err)
	}
	return a, nil
}

// DeleteArtifact removes an artifact row. The caller owns file cleanup.
func (s *Store) DeleteArtifact(id string) error {
	if _, err := s.Exec(s.rebind("DELETE FROM artifacts WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func scanArtifact(scan func(dest ...any) error) (*workflow.Artifact, error) {
	var a workflow.Artifact
	var typ, metadata, createdAt, updatedAt string
	var isEdited int

	err := scan(&a.ID, &a.ExecutionID, &a.PhaseExecutionID, &typ, &a.Name,
		&a.Content, &a.FilePath, &metadata, &isEdited, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = workflow.ArtifactType(typ)
	a.IsEdited = isEdited != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if metadata != "" && metadata != "{}" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal artifact metadata: %w", err)
		}
	}
	return &a, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
