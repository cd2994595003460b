package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/clock"
	"github.com/roach88/queueboard/internal/dispatch"
	"github.com/roach88/queueboard/internal/engine"
	"github.com/roach88/queueboard/internal/testutil"
)

// peerOrigin is the origin of remote steps' broadcasts.
const peerOrigin = "peer"

// awaitTimeout bounds how long await and join wait in real time.
const awaitTimeout = 5 * time.Second

// Harness is the test execution engine.
// It runs one scenario against a fake store on a fake clock.
type Harness struct {
	store      *testutil.FakeStore
	clock      *clock.Fake
	hub        *broadcast.Memory
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	// traced is how many store calls are already in the trace.
	traced int

	async   sync.WaitGroup
	pending int
	mu      sync.Mutex
	errs    []asyncError
}

type asyncError struct {
	step Step
	seq  int
	err  error
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh fake store with the engine's origin
// fixed to "self", so traces are deterministic.
//
// Execution flow:
// 1. Build store, clock, broadcast hub, engine and dispatcher
// 2. Apply setup writes and poll once
// 3. Execute flow steps, tracing the store calls each one causes
// 4. Evaluate assertions against the result
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	h := newHarness(scenario.Fresh)
	defer h.close()

	unsubscribe, err := h.engine.Attach(ctx, h.hub)
	if err != nil {
		return nil, fmt.Errorf("failed to attach engine: %w", err)
	}
	defer unsubscribe()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, side := range board.Sides {
		result.Store[string(side)] = h.store.Dump(side)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(fresh bool) *Harness {
	st := testutil.NewGridStore()
	if fresh {
		st = testutil.NewFakeStore()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	c := clock.NewFake()
	eng := engine.New(st, engine.WithClock(c), engine.WithOrigin("self"), engine.WithLogger(logger))
	hub := broadcast.NewMemory()
	return &Harness{
		store:      st,
		clock:      c,
		hub:        hub,
		engine:     eng,
		dispatcher: dispatch.New(eng, st, dispatch.WithChannel(hub), dispatch.WithLogger(logger)),
		logger:     logger,
	}
}

func (h *Harness) close() {
	h.dispatcher.Close()
	for op := range storeOps {
		h.store.Release(op)
	}
	h.async.Wait()
}

// executeSetup writes the seed slots as a peer would and loads them.
// Setup calls are not traced.
func (h *Harness) executeSetup(ctx context.Context, setup []Seed) error {
	for _, seed := range setup {
		pos := seed.Position
		if pos == "" {
			pos = board.P1
		}
		h.store.Set(testutil.GridID(seed.Row, seed.Side, pos), board.SlotPatch{Text: seed.Text, Checked: seed.Checked})
	}
	if err := h.engine.Poll(ctx); err != nil {
		return err
	}
	h.store.ResetCalls()
	return nil
}

// executeFlow runs the flow steps in order.
//
// Each step:
// 1. Is added to the trace
// 2. Runs, in the background if async
// 3. Has its error, if any, checked against expect_error
// 4. Flushes new store calls to the trace when nothing runs in the background
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		seq := i + 1
		result.AddStepTrace(step.String(), seq)

		if step.Async {
			h.startAsync(ctx, step, seq)
			continue
		}

		err := h.execute(ctx, step, seq, result)
		var infra *infraError
		if errors.As(err, &infra) {
			return fmt.Errorf("flow step %d (%s): %w", seq, step.Do, infra.err)
		}
		h.checkStepError(step, seq, err, result)

		if step.Do == StepJoin {
			for _, ae := range h.drainAsync() {
				h.checkStepError(ae.step, ae.seq, ae.err, result)
			}
		}
		h.traceCalls(seq, result)
	}

	if h.pending > 0 {
		result.AddError("async steps still running at end of flow; add a join step")
	}
	return nil
}

// infraError marks failures of the harness itself rather than of the
// system under test.
type infraError struct {
	err error
}

func (e *infraError) Error() string { return e.err.Error() }

func (h *Harness) execute(ctx context.Context, step Step, seq int, result *Result) error {
	d := h.dispatcher
	id := testutil.GridID(step.Row, step.Side, step.position())

	switch step.Do {
	case StepSetText:
		return d.SetText(id, deref(step.Text))
	case StepCheck:
		return d.ToggleChecked(ctx, step.Row, step.Side, true)
	case StepUncheck:
		return d.ToggleChecked(ctx, step.Row, step.Side, false)
	case StepClear:
		return d.ClearSlot(ctx, id)
	case StepClearRow:
		return d.ClearRow(ctx, step.Row, step.Side)
	case StepInitialize:
		return d.Initialize(ctx)
	case StepPoll:
		return h.engine.Poll(ctx)
	case StepFlush:
		d.Flush()
	case StepRemote:
		slot := h.store.Set(id, step.patch())
		if step.Publish {
			return h.hub.Publish(ctx, broadcast.NewEntryUpdated(peerOrigin, slot))
		}
	case StepAdvance:
		dur, err := time.ParseDuration(step.Duration)
		if err != nil {
			return &infraError{err}
		}
		h.clock.Advance(dur)
	case StepFail:
		var err error
		if step.Error != "" {
			err = errors.New(step.Error)
		}
		h.store.Fail(step.Op, err)
	case StepHold:
		h.store.Hold(step.Op)
	case StepRelease:
		h.store.Release(step.Op)
	case StepAwait:
		return h.await(step.Op, step.Count)
	case StepJoin:
		return h.join()
	case StepSnapshot:
		view := strings.TrimSuffix(testutil.DumpSlots(h.engine.Snapshot(), step.Side), "\n")
		result.AddTrace(TraceView, view, seq)
	default:
		return &infraError{fmt.Errorf("unknown step %q", step.Do)}
	}
	return nil
}

func (h *Harness) startAsync(ctx context.Context, step Step, seq int) {
	h.pending++
	h.async.Add(1)
	go func() {
		defer h.async.Done()
		if err := h.execute(ctx, step, seq, nil); err != nil {
			h.mu.Lock()
			h.errs = append(h.errs, asyncError{step: step, seq: seq, err: err})
			h.mu.Unlock()
		}
	}()
}

func (h *Harness) await(op string, count int) error {
	deadline := time.After(awaitTimeout)
	for seen := 0; seen < count; {
		select {
		case c := <-h.store.Arrivals():
			if c.Op == op {
				seen++
			}
		case <-deadline:
			return &infraError{fmt.Errorf("saw %d of %d %s calls", seen, count, op)}
		}
	}
	return nil
}

func (h *Harness) join() error {
	done := make(chan struct{})
	go func() {
		h.async.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.pending = 0
		return nil
	case <-time.After(awaitTimeout):
		return &infraError{fmt.Errorf("async steps did not finish; is a gate still held?")}
	}
}

func (h *Harness) drainAsync() []asyncError {
	h.mu.Lock()
	defer h.mu.Unlock()
	errs := h.errs
	h.errs = nil
	sort.Slice(errs, func(i, j int) bool { return errs[i].seq < errs[j].seq })
	return errs
}

func (h *Harness) checkStepError(step Step, seq int, err error, result *Result) {
	switch {
	case err != nil:
		result.AddTrace(TraceError, err.Error(), seq)
		if step.ExpectError == "" {
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", seq, step, err))
		} else if !strings.Contains(err.Error(), step.ExpectError) {
			result.AddError(fmt.Sprintf("step %d (%s): error %q does not contain %q", seq, step, err, step.ExpectError))
		}
	case step.ExpectError != "":
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q", seq, step, step.ExpectError))
	}
}

// traceCalls appends the store calls made since the last flush, sorted.
// Nothing is flushed while async steps run, so their calls always land on
// the joining step.
func (h *Harness) traceCalls(seq int, result *Result) {
	if h.pending > 0 {
		return
	}
	calls := h.store.Calls()
	fresh := make([]string, 0, len(calls)-h.traced)
	for _, c := range calls[h.traced:] {
		fresh = append(fresh, c.String())
	}
	h.traced = len(calls)
	sort.Strings(fresh)
	for _, c := range fresh {
		result.AddTrace(TraceCall, c, seq)
	}
}

// Slots returns the current slots of source.
func (h *Harness) Slots(source string) []board.Slot {
	if source == SourceStore {
		return h.store.Slots()
	}
	return h.engine.Snapshot()
}

// Status returns the engine's sync status.
func (h *Harness) Status() engine.Status {
	return h.engine.Status()
}
