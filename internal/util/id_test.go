package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.Len(t, id, 8)
		for _, c := range id {
			assert.Contains(t, "0123456789abcdef", string(c))
		}
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
