package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	c := NewFake()
	start := c.Now()

	var fired []string
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "b") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "a") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "c") })

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(500*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Pending())

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFake_CallbackSeesDeadlineTime(t *testing.T) {
	c := NewFake()
	start := c.Now()

	var at time.Time
	c.AfterFunc(200*time.Millisecond, func() { at = c.Now() })
	c.Advance(time.Second)

	assert.Equal(t, start.Add(200*time.Millisecond), at)
}

func TestFake_Stop(t *testing.T) {
	c := NewFake()

	called := false
	timer := c.AfterFunc(time.Millisecond, func() { called = true })
	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	c.Advance(time.Second)
	assert.False(t, called)
}

func TestFake_TimerScheduledFromCallback(t *testing.T) {
	c := NewFake()

	count := 0
	c.AfterFunc(100*time.Millisecond, func() {
		count++
		c.AfterFunc(100*time.Millisecond, func() { count++ })
	})

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 2, count)
}
