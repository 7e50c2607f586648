package db

import (
	"fmt"
	"time"
)

// Approval actions and sources.
const (
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalTimeout  = "timeout"

	SourceWeb      = "web"
	SourceCLI      = "cli"
	SourceTimeout  = "timeout"
	SourceCallback = "callback"
)

// ApprovalRecord is one append-only entry in the decision log.
type ApprovalRecord struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	PhaseID     string    `json:"phase_id,omitempty"`
	Action      string    `json:"action"`
	Source      string    `json:"source,omitempty"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppendApproval inserts a decision record. Records are never updated.
func (s *Store) AppendApproval(r *ApprovalRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.Exec(s.rebind(`
		INSERT INTO approvals (id, execution_id, phase_id, action, source, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), r.ID, r.ExecutionID, r.PhaseID, r.Action, r.Source, r.Message, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("append approval: %w", err)
	}
	return nil
}

// ListApprovals returns the decision log for an execution, oldest first.
func (s *Store) ListApprovals(executionID string) ([]ApprovalRecord, error) {
	rows, err := s.Query(s.rebind(`
		SELECT id, execution_id, phase_id, action, source, message, created_at
		FROM approvals WHERE execution_id = ? ORDER BY created_at, id
	`), executionID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []ApprovalRecord
	for rows.Next() {
		var r ApprovalRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.ExecutionID, &r.PhaseID, &r.Action,
			&r.Source, &r.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		result = append(result, r)
	}
	return result, rows.Err()
}
