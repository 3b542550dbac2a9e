// ABOUTME: Test utilities for creating isolated stores
// ABOUTME: Uses in-memory BadgerDB so tests need no disk or server
package kv

import "testing"

// NewTestStore returns an in-memory badger store closed when the test ends.
func NewTestStore(t testing.TB) *BadgerStore {
	t.Helper()

	s, err := OpenBadger("")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Warning: failed to close test store: %v", err)
		}
	})
	return s
}
