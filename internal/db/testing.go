// Test helpers for packages needing database access. In-memory databases
// keep tests fast and isolated; cleanup is automatic via t.Cleanup().
package db

import (
	"testing"
)

// NewTestStore creates an in-memory store with migrations applied.
// The store is closed automatically when the test completes.
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
