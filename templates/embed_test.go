package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spfcraze/ultraclaude/internal/workflow"
)

func TestBuiltinTemplatesParse(t *testing.T) {
	t.Parallel()

	tpls, err := Builtin()
	require.NoError(t, err)
	require.NotEmpty(t, tpls)

	seen := make(map[string]bool)
	for _, tpl := range tpls {
		assert.False(t, seen[tpl.ID], "duplicate template id %s", tpl.ID)
		seen[tpl.ID] = true

		assert.True(t, tpl.IsGlobal, "%s: shipped templates are global", tpl.ID)
		assert.NoError(t, tpl.Validate())
		for _, p := range tpl.Phases {
			assert.Greater(t, p.MaxRetries, 0, "%s/%s: normalize applied", tpl.ID, p.ID)
		}
	}
	assert.True(t, seen["builtin-review-pipeline"])
}

func TestReviewPipelineShape(t *testing.T) {
	t.Parallel()

	tpls, err := Builtin()
	require.NoError(t, err)

	var review *workflow.Template
	for _, tpl := range tpls {
		if tpl.ID == "builtin-review-pipeline" {
			review = tpl
		}
	}
	require.NotNil(t, review)

	groups := workflow.OrderPhases(review.Phases)
	require.Len(t, groups, 3)
	assert.True(t, groups[1].Parallel(), "the two reviewers run concurrently")
	assert.Equal(t, workflow.FallbackProvider, review.FailureBehavior)
	require.NotNil(t, review.Phases[0].Provider.Fallback)
}
