package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusBudgetExceeded}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	live := []ExecutionStatus{StatusPending, StatusRunning, StatusPaused, StatusAwaitingApproval}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestPhaseStatus_IsTerminal(t *testing.T) {
	assert.True(t, PhaseCompleted.IsTerminal())
	assert.True(t, PhaseFailed.IsTerminal())
	assert.True(t, PhaseSkipped.IsTerminal())
	assert.False(t, PhaseRunning.IsTerminal())
	assert.False(t, PhasePending.IsTerminal())
	assert.False(t, PhasePaused.IsTerminal())
}

func TestEffectiveTemperature(t *testing.T) {
	assert.Equal(t, DefaultTemperature, ProviderConfig{}.EffectiveTemperature())
	assert.Equal(t, 0.7, ProviderConfig{Temperature: 0.7}.EffectiveTemperature())
}

func TestPhaseTimeout(t *testing.T) {
	assert.Equal(t, time.Hour, Phase{}.Timeout())
	assert.Equal(t, 30*time.Second, Phase{TimeoutSeconds: 30}.Timeout())
}

func TestValidProviderKind(t *testing.T) {
	assert.True(t, ValidProviderKind(ProviderOpenAI))
	assert.True(t, ValidProviderKind(ProviderNone))
	assert.False(t, ValidProviderKind(ProviderKind("mystery")))
}

func TestPhaseByID(t *testing.T) {
	tmpl := BuiltinTemplate()
	p := tmpl.PhaseByID("implement")
	assert.NotNil(t, p)
	assert.Equal(t, RoleImplementer, p.Role)
	assert.Nil(t, tmpl.PhaseByID("nope"))
}
