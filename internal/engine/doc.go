// Package engine implements the client-side sync engine for the queue board.
//
// The engine owns this client's ClientSlotView, a map of slot ID to Slot,
// and merges three input streams into it:
//
//  1. Local optimistic edits from the dispatcher (ApplyLocal, PatchLocal).
//     These always apply, synchronously, before any store call is issued.
//  2. Poll results: the full slot list fetched every PollInterval (Poll, Run).
//  3. Broadcast notifications from other clients (HandleEvent).
//
// ORDERING RULES:
//
// Lock table: each slot ID and each side has a lock with a pending count and
// an expiry. The dispatcher acquires a lock when a local edit starts and
// releases it with a hold (2s for a slot, 3s for a side) once the store
// write completes. While a lock is held, poll and broadcast updates to that
// entity are discarded, not queued. The most recent optimistic value wins
// until the lock expires, and the next poll is trusted.
//
// Typing freeze: every keystroke extends a freeze (1s). While it is active,
// no poll or broadcast is applied at all.
//
// Resync: a sync-all event is applied only when no lock of any kind is held
// and typing is not active. Otherwise it is dropped whole.
//
// Idempotence: an incoming slot is applied only if it differs from the view
// in text, checked, row, side or position. Timestamps are ignored, so
// replaying a snapshot leaves Version unchanged.
//
// Failure: a failed or malformed poll never touches the view. It records a
// retryable Status instead.
//
// Thread-safety: all methods are safe for concurrent use. The view, lock
// table, typing state and status share one mutex; change listeners run
// outside it.
package engine
