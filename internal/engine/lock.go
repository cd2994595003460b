package engine

import (
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// lock is held while pending > 0 or until expiry.
type lock struct {
	pending int
	expiry  time.Time
}

func (l *lock) held(now time.Time) bool {
	return l.pending > 0 || now.Before(l.expiry)
}

func (l *lock) release(now time.Time, hold time.Duration) {
	if l.pending > 0 {
		l.pending--
	}
	if until := now.Add(hold); until.After(l.expiry) {
		l.expiry = until
	}
}

// lockTable tracks per-slot and per-side suppression windows.
// Not thread-safe; the engine mutex guards it.
type lockTable struct {
	slots map[int64]*lock
	sides map[board.Side]*lock
}

func newLockTable() *lockTable {
	return &lockTable{
		slots: make(map[int64]*lock),
		sides: make(map[board.Side]*lock),
	}
}

func (t *lockTable) acquireSlot(id int64) {
	l, ok := t.slots[id]
	if !ok {
		l = &lock{}
		t.slots[id] = l
	}
	l.pending++
}

func (t *lockTable) releaseSlot(id int64, now time.Time, hold time.Duration) {
	if l, ok := t.slots[id]; ok {
		l.release(now, hold)
	}
}

func (t *lockTable) acquireSide(side board.Side) {
	l, ok := t.sides[side]
	if !ok {
		l = &lock{}
		t.sides[side] = l
	}
	l.pending++
}

func (t *lockTable) releaseSide(side board.Side, now time.Time, hold time.Duration) {
	if l, ok := t.sides[side]; ok {
		l.release(now, hold)
	}
}

func (t *lockTable) slotHeld(id int64, now time.Time) bool {
	l, ok := t.slots[id]
	return ok && l.held(now)
}

func (t *lockTable) sideHeld(side board.Side, now time.Time) bool {
	l, ok := t.sides[side]
	return ok && l.held(now)
}

// covers reports whether an external update to s must be discarded.
func (t *lockTable) covers(s board.Slot, now time.Time) bool {
	return t.slotHeld(s.ID, now) || t.sideHeld(s.Side, now)
}

// anyHeld reports whether any lock is held, pruning expired entries.
func (t *lockTable) anyHeld(now time.Time) bool {
	t.prune(now)
	return len(t.slots) > 0 || len(t.sides) > 0
}

func (t *lockTable) prune(now time.Time) {
	for id, l := range t.slots {
		if !l.held(now) {
			delete(t.slots, id)
		}
	}
	for side, l := range t.sides {
		if !l.held(now) {
			delete(t.sides, side)
		}
	}
}
