package board

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotFound is returned when a slot ID does not resolve.
var ErrNotFound = errors.New("slot not found")

// ErrMalformedResponse is returned when a store response does not have the
// expected shape, such as a non-array where a slot list was expected.
var ErrMalformedResponse = errors.New("malformed store response")

// RateLimitError reports a 429 from the store. RetryAfter is taken from the
// Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns the retry delay if err wraps a RateLimitError.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying on the next cycle:
// network failures, timeouts and rate limits.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsRateLimited(err); ok {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
