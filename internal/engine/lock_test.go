package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/queueboard/internal/board"
)

func TestLockTable_PendingThenHold(t *testing.T) {
	lt := newLockTable()
	now := time.Unix(0, 0)

	assert.False(t, lt.slotHeld(1, now))

	lt.acquireSlot(1)
	assert.True(t, lt.slotHeld(1, now.Add(time.Hour)), "held while pending, however long")

	lt.releaseSlot(1, now, 2*time.Second)
	assert.True(t, lt.slotHeld(1, now.Add(1999*time.Millisecond)))
	assert.False(t, lt.slotHeld(1, now.Add(2*time.Second)))
}

func TestLockTable_OverlappingEdits(t *testing.T) {
	lt := newLockTable()
	now := time.Unix(0, 0)

	lt.acquireSlot(1)
	lt.acquireSlot(1)
	lt.releaseSlot(1, now, time.Second)
	assert.True(t, lt.slotHeld(1, now.Add(time.Minute)), "second edit still pending")

	lt.releaseSlot(1, now.Add(time.Minute), time.Second)
	assert.False(t, lt.slotHeld(1, now.Add(time.Minute+time.Second)))
}

func TestLockTable_ExpiryNeverShrinks(t *testing.T) {
	lt := newLockTable()
	now := time.Unix(0, 0)

	lt.acquireSide(board.Left)
	lt.releaseSide(board.Left, now, 3*time.Second)
	lt.acquireSide(board.Left)
	lt.releaseSide(board.Left, now, time.Second)

	assert.True(t, lt.sideHeld(board.Left, now.Add(2*time.Second)))
}

func TestLockTable_UnbalancedRelease(t *testing.T) {
	lt := newLockTable()
	now := time.Unix(0, 0)

	lt.releaseSlot(5, now, time.Second) // never acquired
	assert.False(t, lt.slotHeld(5, now))
}

func TestLockTable_CoversAndPrune(t *testing.T) {
	lt := newLockTable()
	now := time.Unix(0, 0)
	s := board.Slot{ID: 3, Side: board.Right}

	lt.acquireSide(board.Right)
	assert.True(t, lt.covers(s, now))
	assert.False(t, lt.covers(board.Slot{ID: 3, Side: board.Left}, now))

	lt.releaseSide(board.Right, now, time.Second)
	assert.True(t, lt.anyHeld(now))
	assert.False(t, lt.anyHeld(now.Add(time.Second)))
	assert.Empty(t, lt.sides, "expired entries pruned")
}
