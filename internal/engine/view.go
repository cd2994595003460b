package engine

import (
	"time"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
)

// ApplyLocal writes optimistic values into the view unconditionally.
// Locks and the typing freeze only guard against external updates.
func (e *Engine) ApplyLocal(slots ...board.Slot) {
	e.mu.Lock()
	changed := 0
	for _, s := range slots {
		if e.replaceLocked(s) {
			changed++
		}
	}
	version := e.bumpLocked(changed)
	e.mu.Unlock()

	if changed > 0 {
		e.notify(version)
	}
}

// PatchLocal applies patch to the view's copy of id. It returns the new
// value, or false if id is not in the view.
func (e *Engine) PatchLocal(id int64, patch board.SlotPatch) (board.Slot, bool) {
	e.mu.Lock()
	cur, ok := e.view[id]
	if !ok {
		e.mu.Unlock()
		return board.Slot{}, false
	}
	next := patch.Apply(cur)
	changed := 0
	if e.replaceLocked(next) {
		changed = 1
	}
	version := e.bumpLocked(changed)
	e.mu.Unlock()

	if changed > 0 {
		e.notify(version)
	}
	return next, true
}

// LockSlot starts suppressing external updates to id.
func (e *Engine) LockSlot(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locks.acquireSlot(id)
}

// UnlockSlot ends one LockSlot. External updates stay suppressed for hold.
func (e *Engine) UnlockSlot(id int64, hold time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locks.releaseSlot(id, e.clock.Now(), hold)
}

// LockSide suppresses external updates to every slot on side.
func (e *Engine) LockSide(side board.Side) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locks.acquireSide(side)
}

// UnlockSide ends one LockSide, holding the suppression for hold.
func (e *Engine) UnlockSide(side board.Side, hold time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locks.releaseSide(side, e.clock.Now(), hold)
}

// SlotLocked reports whether external updates to id are suppressed.
func (e *Engine) SlotLocked(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.view[id]
	if !ok {
		return e.locks.slotHeld(id, e.clock.Now())
	}
	return e.locks.covers(s, e.clock.Now())
}

// AnyLocked reports whether any slot or side lock is held.
func (e *Engine) AnyLocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locks.anyHeld(e.clock.Now())
}

// MarkTyping starts or extends the typing freeze by TypingHold from now.
func (e *Engine) MarkTyping() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typingUntil = e.clock.Now().Add(e.timing.TypingHold)
}

// Typing reports whether the typing freeze is active.
func (e *Engine) Typing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typingLocked()
}

func (e *Engine) typingLocked() bool {
	return e.clock.Now().Before(e.typingUntil)
}

// ReplaceAll installs slots as the whole view, ignoring locks. Used after
// this client itself initialized the grid.
func (e *Engine) ReplaceAll(slots []board.Slot) {
	e.mu.Lock()
	next := make(map[int64]board.Slot, len(slots))
	for _, s := range slots {
		next[s.ID] = s
	}
	changed := len(next) != len(e.view)
	if !changed {
		for id, s := range next {
			if cur, ok := e.view[id]; !ok || !cur.SameContent(s) {
				changed = true
				break
			}
		}
	}
	e.view = next
	var version uint64
	if changed {
		version = e.bumpLocked(1)
	}
	e.mu.Unlock()

	if changed {
		e.notify(version)
	}
}

// ApplyPoll merges a full poll result. Slots under a lock are skipped and
// nothing applies while typing. Returns the number of slots that changed.
func (e *Engine) ApplyPoll(slots []board.Slot) int {
	e.mu.Lock()
	applied := e.applyExternalLocked(slots, "poll")
	version := e.bumpLocked(applied)
	e.mu.Unlock()

	if applied > 0 {
		e.notify(version)
	}
	return applied
}

// ApplyResync applies a sync-all snapshot if, and only if, no lock is held
// and typing is inactive. It reports whether the snapshot was applied.
func (e *Engine) ApplyResync(slots []board.Slot) bool {
	e.mu.Lock()
	now := e.clock.Now()
	if e.typingLocked() || e.locks.anyHeld(now) {
		e.mu.Unlock()
		e.logger.Debug("resync dropped: local edits in flight", "slots", len(slots))
		return false
	}
	applied := e.applyExternalLocked(slots, "resync")
	version := e.bumpLocked(applied)
	e.mu.Unlock()

	if applied > 0 {
		e.notify(version)
	}
	return true
}

// HandleEvent applies a broadcast notification. Events carrying this
// engine's own origin are ignored.
func (e *Engine) HandleEvent(ev broadcast.Event) {
	if ev.Origin != "" && ev.Origin == e.origin {
		return
	}
	switch ev.Name {
	case broadcast.EntryUpdated:
		if ev.Slot == nil {
			return
		}
		e.mu.Lock()
		applied := e.applyExternalLocked([]board.Slot{*ev.Slot}, "broadcast")
		version := e.bumpLocked(applied)
		e.mu.Unlock()
		if applied > 0 {
			e.notify(version)
		}
	case broadcast.SyncAll:
		e.ApplyResync(ev.Slots)
	default:
		e.logger.Debug("ignoring unknown broadcast", "event", ev.Name)
	}
}

// applyExternalLocked is the single gate for poll and broadcast data.
func (e *Engine) applyExternalLocked(slots []board.Slot, source string) int {
	if e.typingLocked() {
		e.logger.Debug("external update dropped: typing", "source", source, "slots", len(slots))
		return 0
	}
	now := e.clock.Now()
	applied := 0
	for _, s := range slots {
		if e.locks.covers(s, now) {
			continue
		}
		if cur, ok := e.view[s.ID]; ok && e.locks.covers(cur, now) {
			continue
		}
		if e.replaceLocked(s) {
			applied++
		}
	}
	return applied
}

// replaceLocked swaps in s as a whole value. Returns false when the view
// already holds equal content.
func (e *Engine) replaceLocked(s board.Slot) bool {
	if cur, ok := e.view[s.ID]; ok && cur.SameContent(s) {
		return false
	}
	e.view[s.ID] = s
	return true
}

func (e *Engine) bumpLocked(changed int) uint64 {
	if changed > 0 {
		e.version++
	}
	return e.version
}
