package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

func newStoreWithExecution(t *testing.T) (*Store, string, string) {
	t.Helper()
	database := db.NewTestStore(t)
	dir := t.TempDir()

	now := time.Now()
	exec := &workflow.Execution{
		ID: "ex000001", TemplateID: "tp1", TemplateName: "t",
		Status: workflow.StatusRunning, Iteration: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, database.SaveExecution(exec))

	return NewStore(database, WithBaseDir(dir)), exec.ID, dir
}

func TestCreate_MirrorsToDisk(t *testing.T) {
	t.Parallel()
	s, execID, dir := newStoreWithExecution(t)

	a := &workflow.Artifact{
		ExecutionID:      execID,
		PhaseExecutionID: "pe000001",
		Type:             workflow.ArtifactAnalysis,
		Name:             "analyze_output",
		Content:          "analysis text",
	}
	require.NoError(t, s.Create(a))
	require.NotEmpty(t, a.ID)

	wantPath := filepath.Join(dir, execID, a.ID+"_analyze_output")
	assert.Equal(t, wantPath, a.FilePath)

	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, "analysis text", string(data))

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, wantPath, got.FilePath)
}

func TestCreate_SanitizesName(t *testing.T) {
	t.Parallel()
	s, execID, _ := newStoreWithExecution(t)

	a := &workflow.Artifact{
		ExecutionID: execID,
		Type:        workflow.ArtifactCode,
		Name:        "phase one/output (v2)",
		Content:     "x",
	}
	require.NoError(t, s.Create(a))
	assert.Contains(t, a.FilePath, "phase_one_output__v2_")
}

func TestUpdateContent_SetsEditedAndRewritesMirror(t *testing.T) {
	t.Parallel()
	s, execID, _ := newStoreWithExecution(t)

	a := &workflow.Artifact{
		ExecutionID: execID,
		Type:        workflow.ArtifactPlan,
		Name:        "plan_output",
		Content:     "v1",
	}
	require.NoError(t, s.Create(a))

	updated, err := s.UpdateContent(a.ID, "v2 edited")
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)
	assert.Equal(t, "v2 edited", updated.Content)

	data, err := os.ReadFile(updated.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "v2 edited", string(data))
}

func TestDelete_RemovesRowAndMirror(t *testing.T) {
	t.Parallel()
	s, execID, _ := newStoreWithExecution(t)

	a := &workflow.Artifact{
		ExecutionID: execID,
		Type:        workflow.ArtifactDocument,
		Name:        "doc",
		Content:     "x",
	}
	require.NoError(t, s.Create(a))
	path := a.FilePath

	require.NoError(t, s.Delete(a.ID))

	_, err := s.Get(a.ID)
	assert.Error(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupExecution(t *testing.T) {
	t.Parallel()
	s, execID, dir := newStoreWithExecution(t)

	for _, name := range []string{"a", "b"} {
		a := &workflow.Artifact{
			ExecutionID: execID,
			Type:        workflow.ArtifactDocument,
			Name:        name,
			Content:     name,
		}
		require.NoError(t, s.Create(a))
	}

	require.NoError(t, s.CleanupExecution(execID))

	remaining, err := s.GetByExecution(execID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = os.Stat(filepath.Join(dir, execID))
	assert.True(t, os.IsNotExist(err))
}

func TestGetLatestByType(t *testing.T) {
	t.Parallel()
	s, execID, _ := newStoreWithExecution(t)

	first := &workflow.Artifact{ExecutionID: execID, Type: workflow.ArtifactCode, Name: "impl", Content: "v1", CreatedAt: time.Now()}
	require.NoError(t, s.Create(first))
	second := &workflow.Artifact{ExecutionID: execID, Type: workflow.ArtifactCode, Name: "impl", Content: "v2", CreatedAt: time.Now().Add(time.Second)}
	require.NoError(t, s.Create(second))

	got, err := s.GetLatestByType(execID, workflow.ArtifactCode)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Content)
}
