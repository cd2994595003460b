package engine

import (
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// Status is the user-visible sync state. A non-nil Err is always retryable:
// the next poll or user action tries again.
type Status struct {
	// Err is the most recent fetch or write failure, nil after a good poll.
	Err error
	// Connected is false after a network-level failure.
	Connected bool
	// RetryAt is set when the store rate-limited us.
	RetryAt time.Time
	// LastSync is when a poll last succeeded.
	LastSync time.Time
}

// OK reports whether the last interaction succeeded.
func (s Status) OK() bool {
	return s.Err == nil
}

// RetryIn is the countdown for a rate-limit hint, zero when none applies.
func (s Status) RetryIn(now time.Time) time.Duration {
	if s.RetryAt.IsZero() || !now.Before(s.RetryAt) {
		return 0
	}
	return s.RetryAt.Sub(now)
}

// withError derives the status after err at now.
func (s Status) withError(err error, now time.Time) Status {
	s.Err = err
	s.RetryAt = time.Time{}
	if d, ok := board.IsRateLimited(err); ok {
		s.Connected = true
		s.RetryAt = now.Add(d)
		return s
	}
	if board.IsTransient(err) {
		s.Connected = false
		return s
	}
	s.Connected = true
	return s
}
