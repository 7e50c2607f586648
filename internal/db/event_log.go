package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventRecord is a persisted engine event for timeline reconstruction.
type EventRecord struct {
	ID          int64     `json:"id"`
	ExecutionID string    `json:"execution_id"`
	EventType   string    `json:"event_type"`
	Data        string    `json:"data,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppendEvent inserts an event into the event log. Implements
// events.Recorder.
func (s *Store) AppendEvent(executionID, eventType string, payload []byte) error {
	_, err := s.Exec(s.rebind(`
		INSERT INTO event_log (execution_id, event_type, data, created_at)
		VALUES (?, ?, ?, ?)
	`), executionID, eventType, string(payload), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns logged events for an execution in insertion order.
// A limit of 0 returns everything.
func (s *Store) ListEvents(executionID string, limit int) ([]EventRecord, error) {
	query := `
		SELECT id, execution_id, event_type, data, created_at
		FROM event_log WHERE execution_id = ? ORDER BY id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.Query(s.rebind(query), executionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []EventRecord
	for rows.Next() {
		var r EventRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.ExecutionID, &r.EventType, &r.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		result = append(result, r)
	}
	return result, rows.Err()
}

// LatestEventByType returns the newest logged event of the given type for
// an execution, or nil when none was logged.
func (s *Store) LatestEventByType(executionID, eventType string) (*EventRecord, error) {
	row := s.QueryRow(s.rebind(`
		SELECT id, execution_id, event_type, data, created_at
		FROM event_log WHERE execution_id = ? AND event_type = ?
		ORDER BY id DESC LIMIT 1
	`), executionID, eventType)

	var r EventRecord
	var createdAt string
	if err := row.Scan(&r.ID, &r.ExecutionID, &r.EventType, &r.Data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest event: %w", err)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// PruneEvents deletes log entries older than the cutoff.
func (s *Store) PruneEvents(before time.Time) (int64, error) {
	res, err := s.Exec(s.rebind("DELETE FROM event_log WHERE created_at < ?"), formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
