// Package artifact manages phase outputs: database rows plus an optional
// file mirror under the artifacts directory for direct inspection.
package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/util"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// Store persists artifacts and mirrors their content to disk.
type Store struct {
	db     *db.Store
	logger *slog.Logger

	// baseDir is the mirror root; empty disables the file mirror.
	baseDir string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBaseDir enables the file mirror rooted at dir.
func WithBaseDir(dir string) Option {
	return func(s *Store) { s.baseDir = dir }
}

// NewStore creates an artifact store.
func NewStore(database *db.Store, opts ...Option) *Store {
	s := &Store{
		db:     database,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new artifact and writes its file mirror. The mirror is
// best-effort: a write failure is logged, not fatal.
func (s *Store) Create(a *workflow.Artifact) error {
	if a.ID == "" {
		a.ID = util.NewID()
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	if s.baseDir != "" {
		path := s.mirrorPath(a)
		if err := util.AtomicWriteFile(path, []byte(a.Content), 0o644); err != nil {
			s.logger.Warn("write artifact mirror", "artifact", a.ID, "path", path, "error", err)
		} else {
			a.FilePath = path
		}
	}

	return s.db.SaveArtifact(a)
}

// Get loads an artifact by id.
func (s *Store) Get(id string) (*workflow.Artifact, error) {
	return s.db.GetArtifact(id)
}

// GetByExecution returns all artifacts of an execution in creation order.
func (s *Store) GetByExecution(executionID string) ([]workflow.Artifact, error) {
	return s.db.ListArtifactsByExecution(executionID)
}

// GetByPhaseExecution returns artifacts produced by one phase run.
func (s *Store) GetByPhaseExecution(phaseExecutionID string) ([]workflow.Artifact, error) {
	return s.db.ListArtifactsByPhaseExecution(phaseExecutionID)
}

// GetLatestByType returns the newest artifact of a type in an execution,
// or nil when none exists.
func (s *Store) GetLatestByType(executionID string, typ workflow.ArtifactType) (*workflow.Artifact, error) {
	return s.db.GetLatestArtifactByType(executionID, typ)
}

// UpdateContent replaces an artifact's content, marks it edited, and
// rewrites the file mirror.
func (s *Store) UpdateContent(id, content string) (*workflow.Artifact, error) {
	a, err := s.db.GetArtifact(id)
	if err != nil {
		return nil, err
	}

	a.Content = content
	a.IsEdited = true
	a.UpdatedAt = time.Now()

	if a.FilePath != "" {
		if err := util.AtomicWriteFile(a.FilePath, []byte(content), 0o644); err != nil {
			s.logger.Warn("rewrite artifact mirror", "artifact", a.ID, "error", err)
		}
	}

	if err := s.db.SaveArtifact(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an artifact row and its mirror file.
func (s *Store) Delete(id string) error {
	a, err := s.db.GetArtifact(id)
	if err != nil {
		return err
	}
	if a.FilePath != "" {
		if err := os.Remove(a.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove artifact mirror", "artifact", id, "error", err)
		}
	}
	return s.db.DeleteArtifact(id)
}

// CleanupExecution deletes all artifacts of an execution and removes the
// execution's mirror directory when it is empty.
func (s *Store) CleanupExecution(executionID string) error {
	artifacts, err := s.db.ListArtifactsByExecution(executionID)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		if err := s.Delete(a.ID); err != nil {
			return fmt.Errorf("delete artifact %s: %w", a.ID, err)
		}
	}
	if s.baseDir != "" {
		// Only removes when empty.
		_ = os.Remove(filepath.Join(s.baseDir, executionID))
	}
	return nil
}

// mirrorPath builds <base>/<execution_id>/<artifact_id>_<sanitized_name>.
func (s *Store) mirrorPath(a *workflow.Artifact) string {
	return filepath.Join(s.baseDir, a.ExecutionID, a.ID+"_"+sanitizeName(a.Name))
}

// sanitizeName keeps [A-Za-z0-9._-] and replaces everything else with '_'.
func sanitizeName(name string) string {
	if name == "" {
		return "artifact"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
