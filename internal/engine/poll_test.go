package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/clock"
	"github.com/roach88/queueboard/internal/testutil"
)

func TestPoll_FailureKeepsView(t *testing.T) {
	e, st, _ := newTestEngine(t)
	before := e.Snapshot()

	st.Fail(testutil.OpList, errors.New("connection refused"))
	err := e.Poll(context.Background())
	require.Error(t, err)

	assert.Equal(t, before, e.Snapshot(), "failed poll never clears the view")
	status := e.Status()
	assert.False(t, status.OK())
	assert.True(t, status.Connected, "plain errors are not connectivity loss")

	st.Fail(testutil.OpList, nil)
	require.NoError(t, e.Poll(context.Background()))
	assert.True(t, e.Status().OK(), "next successful poll clears the error")
}

func TestPoll_MalformedResponse(t *testing.T) {
	e, st, _ := newTestEngine(t)
	before := e.Snapshot()

	st.ReturnNil(true)
	err := e.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, board.ErrMalformedResponse)
	assert.Equal(t, before, e.Snapshot())
}

func TestPoll_RateLimitedStatus(t *testing.T) {
	e, st, clk := newTestEngine(t)

	st.Fail(testutil.OpList, &board.RateLimitError{RetryAfter: 7 * time.Second})
	require.Error(t, e.Poll(context.Background()))

	status := e.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, 7*time.Second, status.RetryIn(clk.Now()))

	clk.Advance(5 * time.Second)
	assert.Equal(t, 2*time.Second, status.RetryIn(clk.Now()))
	clk.Advance(5 * time.Second)
	assert.Zero(t, status.RetryIn(clk.Now()))
}

func TestPoll_RequestTimeout(t *testing.T) {
	st := testutil.NewGridStore()
	timing := DefaultTiming()
	timing.RequestTimeout = 20 * time.Millisecond
	e := New(st, WithClock(clock.NewFake()), WithTiming(timing), WithLogger(discardLogger()))

	st.Hold(testutil.OpList)
	err := e.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, e.Status().Connected)
	assert.Empty(t, e.Snapshot())
}

func TestPoll_NewerPollSupersedesInFlight(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	st.Set(slot7, board.TextPatch("first"))
	st.Hold(testutil.OpList)

	firstDone := make(chan error, 1)
	go func() { firstDone <- e.Poll(ctx) }()
	<-st.Arrivals()

	secondDone := make(chan error, 1)
	go func() { secondDone <- e.Poll(ctx) }()

	// The second poll cancels the first, which returns without applying.
	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, ErrPollSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first poll was not cancelled")
	}
	assert.Equal(t, "", viewText(t, e, slot7))

	<-st.Arrivals()
	st.Set(slot7, board.TextPatch("second"))
	st.Release(testutil.OpList)

	require.NoError(t, <-secondDone)
	assert.Equal(t, "second", viewText(t, e, slot7))
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	st := testutil.NewGridStore()
	timing := DefaultTiming()
	timing.PollInterval = 10 * time.Millisecond
	e := New(st, WithTiming(timing), WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(st.CallsOf(testutil.OpList)) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, e.Snapshot(), board.SlotCount)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
