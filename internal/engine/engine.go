package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/clock"
)

// Engine is the client-resident state reconciler. See package doc for the
// ordering rules.
type Engine struct {
	store  Store
	clock  clock.Clock
	timing Timing
	origin string
	ids    OriginGenerator
	logger *slog.Logger

	mu          sync.Mutex
	view        map[int64]board.Slot
	locks       *lockTable
	typingUntil time.Time
	version     uint64
	status      Status
	pollGen     uint64
	pollCancel  context.CancelFunc

	listenersMu sync.Mutex
	listeners   []func(version uint64)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock. Tests pass a *clock.Fake.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTiming overrides the default delays.
func WithTiming(t Timing) Option {
	return func(e *Engine) {
		e.timing = t
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithOrigin fixes the origin ID instead of generating a UUIDv7.
func WithOrigin(origin string) Option {
	return func(e *Engine) {
		e.origin = origin
	}
}

// WithOriginGenerator sets where the origin ID comes from when none is
// fixed. Default: UUIDv7Generator.
func WithOriginGenerator(g OriginGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine with an empty view over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		clock:  clock.New(),
		timing: DefaultTiming(),
		logger: slog.Default(),
		view:   make(map[int64]board.Slot),
		locks:  newLockTable(),
		status: Status{Connected: true},
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.origin == "" {
		e.origin = e.ids.Generate()
	}
	return e
}

// Origin is the ID this client stamps on its broadcasts.
func (e *Engine) Origin() string { return e.origin }

// Clock returns the engine's clock; the dispatcher shares it.
func (e *Engine) Clock() clock.Clock { return e.clock }

// Timing returns the configured delays.
func (e *Engine) Timing() Timing { return e.timing }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// OnChange registers fn to be called with the new Version after every view
// change. fn runs outside the engine lock and may read the view.
func (e *Engine) OnChange(fn func(version uint64)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) notify(version uint64) {
	e.listenersMu.Lock()
	listeners := append([]func(uint64){}, e.listeners...)
	e.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(version)
	}
}

// Version increments once per observable view change.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// ReportError records a failed store interaction in Status.
func (e *Engine) ReportError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.status = e.status.withError(err, e.clock.Now())
	e.mu.Unlock()
}

// Snapshot returns a copy of the view in canonical order.
func (e *Engine) Snapshot() []board.Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() []board.Slot {
	out := make([]board.Slot, 0, len(e.view))
	for _, s := range e.view {
		out = append(out, s)
	}
	board.SortSlots(out)
	return out
}

// Slot returns the view's current value for id.
func (e *Engine) Slot(id int64) (board.Slot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.view[id]
	return s, ok
}

// Row resolves a row on one side from the current, deduplicated view.
func (e *Engine) Row(row int, side board.Side) (board.Row, bool) {
	for _, r := range board.RowsOf(board.Dedupe(e.Snapshot()), side) {
		if r.Index == row {
			return r, true
		}
	}
	return board.Row{}, false
}

// Attach subscribes the engine to ch until the returned func is called.
func (e *Engine) Attach(ctx context.Context, ch broadcast.Channel) (func(), error) {
	return ch.Subscribe(ctx, e.HandleEvent)
}
