package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateYAMLRoundTrip(t *testing.T) {
	orig := BuiltinTemplate()

	data, err := MarshalTemplate(orig)
	require.NoError(t, err)

	got, err := UnmarshalTemplate(data)
	require.NoError(t, err)

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.MaxIterations, got.MaxIterations)
	assert.Equal(t, orig.IterationBehavior, got.IterationBehavior)
	assert.Equal(t, orig.FailureBehavior, got.FailureBehavior)
	require.Len(t, got.Phases, len(orig.Phases))
	for i := range orig.Phases {
		assert.Equal(t, orig.Phases[i].ID, got.Phases[i].ID)
		assert.Equal(t, orig.Phases[i].Order, got.Phases[i].Order, "phase order must survive round-trip")
		assert.Equal(t, orig.Phases[i].Provider.Kind, got.Phases[i].Provider.Kind)
		assert.Equal(t, orig.Phases[i].SuccessPattern, got.Phases[i].SuccessPattern)
	}
}

func TestUnmarshalTemplate_AppliesDefaults(t *testing.T) {
	yml := `
name: minimal
phases:
  - id: only
    name: Only
    provider_config:
      kind: none
    prompt_template: "do {task_description}"
    output_artifact_type: document
`
	tmpl, err := UnmarshalTemplate([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, tmpl.MaxIterations)
	assert.Equal(t, AutoIterate, tmpl.IterationBehavior)
	assert.Equal(t, PauseNotify, tmpl.FailureBehavior)
	assert.Equal(t, DefaultMaxRetries, tmpl.Phases[0].MaxRetries)
	assert.Equal(t, DefaultTimeoutSeconds, tmpl.Phases[0].TimeoutSeconds)
}

func TestUnmarshalTemplate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"no phases", "name: empty\nphases: []\n"},
		{"bad kind", `
name: bad
phases:
  - id: p
    name: P
    provider_config: {kind: warp_drive}
    prompt_template: x
    output_artifact_type: document
`},
		{"duplicate ids", `
name: dup
phases:
  - {id: p, name: P, provider_config: {kind: none}, prompt_template: x, output_artifact_type: document}
  - {id: p, name: Q, provider_config: {kind: none}, prompt_template: y, output_artifact_type: document}
`},
		{"self parallel", `
name: selfpar
phases:
  - {id: p, name: P, provider_config: {kind: none}, prompt_template: x, output_artifact_type: document, parallel_with: p}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalTemplate([]byte(tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestBuiltinTemplateValid(t *testing.T) {
	tmpl := BuiltinTemplate()
	require.NoError(t, tmpl.Validate())
	assert.True(t, tmpl.IsDefault)
	assert.True(t, tmpl.IsGlobal)
}
