package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// createTestStore creates a new file-backed store in a temp dir for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createInitializedStore creates a store with the 48 canonical slots.
func createInitializedStore(t *testing.T, opts ...Option) (*Store, []board.Slot) {
	t.Helper()
	s := createTestStore(t, opts...)
	slots, err := s.InitializeGrid(context.Background())
	if err != nil {
		t.Fatalf("InitializeGrid() failed: %v", err)
	}
	return s, slots
}

// fixedNow returns a timestamp source that advances one second per call.
func fixedNow() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func findSlot(t *testing.T, slots []board.Slot, k board.Key) board.Slot {
	t.Helper()
	for _, s := range slots {
		if s.Key() == k {
			return s
		}
	}
	t.Fatalf("slot %s not found", k)
	return board.Slot{}
}
