package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/queueboard/internal/clock"
)

func TestDebouncer_RunsLatestOnce(t *testing.T) {
	clk := clock.NewFake()
	d := NewDebouncer(clk, 500*time.Millisecond)

	var got []string
	assert.True(t, d.Trigger(1, func() { got = append(got, "a") }), "first call starts a burst")
	clk.Advance(300 * time.Millisecond)
	assert.False(t, d.Trigger(1, func() { got = append(got, "b") }))
	clk.Advance(499 * time.Millisecond)
	assert.Empty(t, got)

	clk.Advance(time.Millisecond)
	assert.Equal(t, []string{"b"}, got)
	assert.False(t, d.Pending(1))
	assert.Zero(t, clk.Pending(), "replaced timers are stopped")

	assert.True(t, d.Trigger(1, func() {}), "a fired key starts a new burst")
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	clk := clock.NewFake()
	d := NewDebouncer(clk, 100*time.Millisecond)

	fired := map[int64]int{}
	d.Trigger(1, func() { fired[1]++ })
	clk.Advance(50 * time.Millisecond)
	d.Trigger(2, func() { fired[2]++ })
	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, map[int64]int{1: 1}, fired)
	clk.Advance(50 * time.Millisecond)
	assert.Equal(t, map[int64]int{1: 1, 2: 1}, fired)
}

func TestDebouncer_Cancel(t *testing.T) {
	clk := clock.NewFake()
	d := NewDebouncer(clk, 100*time.Millisecond)

	ran := false
	d.Trigger(7, func() { ran = true })
	assert.True(t, d.Cancel(7))
	assert.False(t, d.Cancel(7))
	clk.Advance(time.Second)
	assert.False(t, ran)
}

func TestDebouncer_Flush(t *testing.T) {
	clk := clock.NewFake()
	d := NewDebouncer(clk, time.Hour)

	var order []int64
	d.Trigger(3, func() { order = append(order, 3) })
	d.Trigger(1, func() { order = append(order, 1) })

	d.Flush()
	assert.Equal(t, []int64{1, 3}, order)
	assert.Zero(t, clk.Pending())

	clk.Advance(2 * time.Hour)
	assert.Len(t, order, 2, "flushed functions do not fire again")
}

func TestDebouncer_Stop(t *testing.T) {
	clk := clock.NewFake()
	d := NewDebouncer(clk, 100*time.Millisecond)

	ran := 0
	d.Trigger(1, func() { ran++ })
	d.Stop()
	assert.False(t, d.Trigger(2, func() { ran++ }))
	clk.Advance(time.Second)
	assert.Zero(t, ran)
}
