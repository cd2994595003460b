package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// Poll fetches the full slot list and merges it into the view.
//
// Starting a poll cancels any poll still in flight; the superseded poll
// returns ErrPollSuperseded and its result is discarded even if it arrives.
// Each fetch is bounded by Timing.RequestTimeout. On failure the view is
// left untouched and Status records the error.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	if e.pollCancel != nil {
		e.pollCancel()
	}
	e.pollGen++
	gen := e.pollGen
	pctx, cancel := context.WithTimeout(ctx, e.timing.RequestTimeout)
	e.pollCancel = cancel
	e.mu.Unlock()
	defer cancel()

	slots, err := e.store.ListSlots(pctx)
	if err == nil && slots == nil {
		err = fmt.Errorf("list slots returned no array: %w", board.ErrMalformedResponse)
	}

	e.mu.Lock()
	if gen != e.pollGen {
		e.mu.Unlock()
		return ErrPollSuperseded
	}
	e.pollCancel = nil
	now := e.clock.Now()
	if err != nil {
		e.status = e.status.withError(err, now)
		e.mu.Unlock()
		e.logger.Warn("poll failed, keeping current view", "error", err)
		return fmt.Errorf("poll: %w", err)
	}
	e.status = Status{Connected: true, LastSync: now}
	applied := e.applyExternalLocked(slots, "poll")
	version := e.bumpLocked(applied)
	e.mu.Unlock()

	if applied > 0 {
		e.logger.Debug("poll applied", "changed", applied, "version", version)
		e.notify(version)
	}
	return nil
}

// Run polls immediately and then every Timing.PollInterval until ctx ends.
// Each tick starts its poll on a new goroutine, so a slow request is
// cancelled by the next tick rather than queueing behind it.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	poll := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Poll(ctx); err != nil && !errors.Is(err, ErrPollSuperseded) && ctx.Err() == nil {
				e.logger.Debug("poll error", "error", err)
			}
		}()
	}

	poll()
	ticker := time.NewTicker(e.timing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			poll()
		}
	}
}
