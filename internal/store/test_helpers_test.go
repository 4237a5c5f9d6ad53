package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/seed/internal/ir"
)

// createTestStore opens a fresh journal in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreAt(t, filepath.Join(t.TempDir(), "journal.db"))
}

func createTestStoreAt(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// typed creates a typed action with minimal required fields.
func typed(seq int64, typ, invocation string, data any) ir.Action {
	return ir.Action{
		Type:       typ,
		Invocation: invocation,
		Seq:        seq,
		Payload:    ir.Payload{Data: data},
	}
}
