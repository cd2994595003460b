package engine

import "errors"

// ErrPollSuperseded is returned by Poll when a newer poll started before
// this one finished. Its result was discarded.
var ErrPollSuperseded = errors.New("poll superseded by a newer poll")
