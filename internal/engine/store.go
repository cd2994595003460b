package engine

import (
	"context"
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// Store is the backing store contract the engine and dispatcher consume.
// Implemented by store.Store (SQLite), pgstore.Store and remote.Client.
type Store interface {
	ListSlots(ctx context.Context) ([]board.Slot, error)
	GetSlot(ctx context.Context, id int64) (board.Slot, error)
	UpdateSlot(ctx context.Context, id int64, patch board.SlotPatch) (board.Slot, error)
	ClearSlotText(ctx context.Context, id int64) (board.Slot, error)
	InitializeGrid(ctx context.Context) ([]board.Slot, error)
	ListHistory(ctx context.Context, limit int) ([]board.HistoryEntry, error)
}

// Timing holds every delay the reconciliation layer uses.
type Timing struct {
	// PollInterval is the full-state poll cadence.
	PollInterval time.Duration
	// SlotLockHold is how long a slot stays locked after its write completes.
	SlotLockHold time.Duration
	// SideLockHold is the same for side-wide group operations.
	SideLockHold time.Duration
	// TypingHold is how long the typing freeze lasts after the last keystroke.
	TypingHold time.Duration
	// Debounce is the quiet period before a text edit is written.
	Debounce time.Duration
	// RequestTimeout bounds every store call issued by the engine or dispatcher.
	RequestTimeout time.Duration
}

// DefaultTiming returns the standard delays.
func DefaultTiming() Timing {
	return Timing{
		PollInterval:   5 * time.Second,
		SlotLockHold:   2 * time.Second,
		SideLockHold:   3 * time.Second,
		TypingHold:     time.Second,
		Debounce:       500 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
	}
}
