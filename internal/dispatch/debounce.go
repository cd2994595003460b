package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/queueboard/internal/clock"
)

// Debouncer runs the latest function registered for a key once the key has
// been quiet for the delay.
//
// Thread-safety: all methods are safe for concurrent use. Functions run
// outside the internal lock.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	pending map[int64]*debounced
	stopped bool
	running sync.WaitGroup
}

type debounced struct {
	timer clock.Timer
	fn    func()
}

// NewDebouncer creates a Debouncer on c.
func NewDebouncer(c clock.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{
		clock:   c,
		delay:   delay,
		pending: make(map[int64]*debounced),
	}
}

// Trigger (re)schedules fn for key, replacing any pending function. It
// reports whether this call started a new burst.
func (d *Debouncer) Trigger(key int64, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	prev, ok := d.pending[key]
	if ok {
		prev.timer.Stop()
	}
	call := &debounced{fn: fn}
	d.pending[key] = call
	call.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, call) })
	return !ok
}

// Cancel drops the pending function for key. It reports whether one was
// pending.
func (d *Debouncer) Cancel(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	call, ok := d.pending[key]
	if ok {
		call.timer.Stop()
		delete(d.pending, key)
	}
	return ok
}

// Pending reports whether key has a scheduled function.
func (d *Debouncer) Pending(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs every pending function now, in key order, and waits for all
// running functions to return.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]int64, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	calls := make([]*debounced, 0, len(keys))
	for _, k := range keys {
		call := d.pending[k]
		call.timer.Stop()
		delete(d.pending, k)
		calls = append(calls, call)
	}
	d.running.Add(len(calls))
	d.mu.Unlock()

	for _, call := range calls {
		func() {
			defer d.running.Done()
			call.fn()
		}()
	}
	d.running.Wait()
}

// Stop cancels every pending function and rejects new ones. Functions
// already running are not interrupted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for k, call := range d.pending {
		call.timer.Stop()
		delete(d.pending, k)
	}
}

func (d *Debouncer) fire(key int64, call *debounced) {
	d.mu.Lock()
	if d.pending[key] != call {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	call.fn()
}
