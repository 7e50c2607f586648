package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

func TestTemplateRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	tmpl := workflow.BuiltinTemplate()
	require.NoError(t, s.SaveTemplate(tmpl))

	got, err := s.GetTemplate(tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Name, got.Name)
	assert.Equal(t, tmpl.IterationBehavior, got.IterationBehavior)
	require.Len(t, got.Phases, len(tmpl.Phases))
	assert.Equal(t, tmpl.Phases[0].PromptTemplate, got.Phases[0].PromptTemplate)
	assert.True(t, got.IsDefault)
}

func TestGetTemplate_NotFound(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	_, err := s.GetTemplate("missing")
	require.Error(t, err)
	assert.True(t, ucerrors.HasCode(err, ucerrors.CodeTemplateNotFound))
}

func TestListTemplates_Visibility(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	global := workflow.BuiltinTemplate()
	require.NoError(t, s.SaveTemplate(global))

	project := workflow.BuiltinTemplate()
	project.ID = "tp000001"
	project.Name = "project pipeline"
	project.IsGlobal = false
	project.IsDefault = false
	project.ProjectID = "proj1"
	require.NoError(t, s.SaveTemplate(project))

	visible, err := s.ListTemplates("proj1")
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	other, err := s.ListTemplates("proj2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, global.ID, other[0].ID)
}

func TestResolveDefaultTemplate_ProjectWinsOverGlobal(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	global := workflow.BuiltinTemplate()
	require.NoError(t, s.SaveTemplate(global))

	project := workflow.BuiltinTemplate()
	project.ID = "tp000002"
	project.Name = "project default"
	project.IsGlobal = false
	project.ProjectID = "proj1"
	project.IsDefault = true
	require.NoError(t, s.SaveTemplate(project))

	got, err := s.ResolveDefaultTemplate("proj1")
	require.NoError(t, err)
	assert.Equal(t, "tp000002", got.ID)

	// Other projects fall back to the global default.
	got, err = s.ResolveDefaultTemplate("proj2")
	require.NoError(t, err)
	assert.Equal(t, global.ID, got.ID)
}

func TestResolveDefaultTemplate_NoneConfigured(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	_, err := s.ResolveDefaultTemplate("proj1")
	require.Error(t, err)
	assert.True(t, ucerrors.HasCode(err, ucerrors.CodeConfigError))
}

func TestSeedBuiltinTemplate_Idempotent(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	require.NoError(t, s.SeedBuiltinTemplate())

	// Local edits survive a re-seed.
	tmpl, err := s.GetTemplate(workflow.BuiltinTemplate().ID)
	require.NoError(t, err)
	tmpl.MaxIterations = 7
	tmpl.UpdatedAt = time.Now()
	require.NoError(t, s.SaveTemplate(tmpl))

	require.NoError(t, s.SeedBuiltinTemplate())

	got, err := s.GetTemplate(tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.MaxIterations)
}
