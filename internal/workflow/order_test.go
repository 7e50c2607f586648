package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phase(id string, order int, parallelWith string) Phase {
	return Phase{ID: id, Name: id, Order: order, ParallelWith: parallelWith}
}

func TestOrderPhases_Serial(t *testing.T) {
	groups := OrderPhases([]Phase{
		phase("c", 3, ""),
		phase("a", 1, ""),
		phase("b", 2, ""),
	})
	require.Len(t, groups, 3)
	assert.Equal(t, "a", groups[0].Phases[0].ID)
	assert.Equal(t, "b", groups[1].Phases[0].ID)
	assert.Equal(t, "c", groups[2].Phases[0].ID)
	for _, g := range groups {
		assert.False(t, g.Parallel())
	}
}

func TestOrderPhases_StableOnEqualOrder(t *testing.T) {
	groups := OrderPhases([]Phase{
		phase("first", 1, ""),
		phase("second", 1, ""),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "first", groups[0].Phases[0].ID)
	assert.Equal(t, "second", groups[1].Phases[0].ID)
}

func TestOrderPhases_ParallelGroup(t *testing.T) {
	groups := OrderPhases([]Phase{
		phase("a", 1, ""),
		phase("p1", 2, ""),
		phase("p2", 3, "p1"),
		phase("z", 4, ""),
	})
	require.Len(t, groups, 3)
	assert.Equal(t, "a", groups[0].Phases[0].ID)

	require.True(t, groups[1].Parallel())
	require.Len(t, groups[1].Phases, 2)
	assert.Equal(t, "p1", groups[1].Phases[0].ID)
	assert.Equal(t, "p2", groups[1].Phases[1].ID)

	assert.Equal(t, "z", groups[2].Phases[0].ID)
}

func TestOrderPhases_TransitiveAnchor(t *testing.T) {
	// p3 names p2 which is already in p1's group; all three share a group.
	groups := OrderPhases([]Phase{
		phase("p1", 1, ""),
		phase("p2", 2, "p1"),
		phase("p3", 3, "p2"),
	})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Phases, 3)
}

func TestOrderPhases_DanglingParallelWithRunsSerial(t *testing.T) {
	groups := OrderPhases([]Phase{
		phase("a", 1, "ghost"),
	})
	require.Len(t, groups, 1)
	assert.False(t, groups[0].Parallel())
}
