package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/engine"
	"github.com/roach88/queueboard/internal/policy"
)

// Dispatcher applies user intents to the engine's view and the store.
type Dispatcher struct {
	engine  *engine.Engine
	store   engine.Store
	channel broadcast.Channel
	logger  *slog.Logger
	timing  engine.Timing

	debouncer *Debouncer

	// Debounced writes outlive the call that scheduled them.
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannel sets the channel successful writes are published on.
func WithChannel(ch broadcast.Channel) Option {
	return func(d *Dispatcher) {
		d.channel = ch
	}
}

// WithLogger sets the logger. Default: the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher writing to store and patching e's view. The
// debouncer shares e's clock and timing.
func New(e *engine.Engine, store engine.Store, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		engine: e,
		store:  store,
		logger: e.Logger(),
		timing: e.Timing(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.debouncer = NewDebouncer(e.Clock(), d.timing.Debounce)
	return d
}

// SetText records a keystroke in slot id. The text is normalized and shown
// at once; the store write happens after the debounce quiet period with the
// latest text of the burst.
func (d *Dispatcher) SetText(id int64, raw string) error {
	text := board.NormalizeText(raw)
	if _, ok := d.engine.PatchLocal(id, board.TextPatch(text)); !ok {
		return fmt.Errorf("set text on slot %d: %w", id, board.ErrNotFound)
	}
	d.engine.MarkTyping()
	if d.debouncer.Trigger(id, func() { d.writeText(id, text) }) {
		d.engine.LockSlot(id)
	}
	return nil
}

func (d *Dispatcher) writeText(id int64, text string) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timing.RequestTimeout)
	defer cancel()

	slot, err := d.store.UpdateSlot(ctx, id, board.TextPatch(text))
	d.engine.UnlockSlot(id, d.timing.SlotLockHold)
	if err != nil {
		d.logger.Warn("text write failed", "slot", id, "error", err)
		d.engine.ReportError(err)
		return
	}
	d.publish(ctx, broadcast.NewEntryUpdated(d.engine.Origin(), slot))
}

// ToggleChecked checks or unchecks a row on side. Unchecking also moves the
// row below the populated rows. Unchecking a row that is not checked does
// nothing.
func (d *Dispatcher) ToggleChecked(ctx context.Context, row int, side board.Side, checked bool) error {
	var (
		plan policy.Plan
		err  error
	)
	if checked {
		plan, err = policy.Check(d.engine.Snapshot(), row, side)
	} else {
		plan, err = policy.Uncheck(d.engine.Snapshot(), row, side)
	}
	if errors.Is(err, policy.ErrNotChecked) {
		d.logger.Debug("uncheck ignored: row not checked", "side", side, "row", row)
		return nil
	}
	if err != nil {
		return fmt.Errorf("toggle %s row %d: %w", side, row, err)
	}
	if plan.Empty() {
		return nil
	}

	d.engine.LockSide(side)
	defer d.engine.UnlockSide(side, d.timing.SideLockHold)

	d.engine.ApplyLocal(plan.After()...)
	d.logger.Debug("group write", "plan", plan.String())

	writes := make([]write, len(plan.Changes))
	for i, c := range plan.Changes {
		writes[i] = write{id: c.After.ID, do: func(ctx context.Context) (board.Slot, error) {
			return d.store.UpdateSlot(ctx, c.After.ID, c.Patch)
		}}
	}
	return d.writeGroup(ctx, writes, false)
}

// ClearSlot empties a slot's text, dropping any pending text write for it.
func (d *Dispatcher) ClearSlot(ctx context.Context, id int64) error {
	if _, ok := d.engine.Slot(id); !ok {
		return fmt.Errorf("clear slot %d: %w", id, board.ErrNotFound)
	}
	d.lockForClear(id)
	d.engine.PatchLocal(id, board.TextPatch(""))

	return d.writeGroup(ctx, []write{d.clearer(id)}, true)
}

// ClearRow empties both slots of a row. Both cells are cleared in the view
// before either store call is issued.
func (d *Dispatcher) ClearRow(ctx context.Context, row int, side board.Side) error {
	r, ok := d.engine.Row(row, side)
	if !ok {
		return fmt.Errorf("clear %s row %d: %w", side, row, policy.ErrRowNotFound)
	}
	slots := r.Slots()
	writes := make([]write, len(slots))
	cleared := make([]board.Slot, len(slots))
	for i, s := range slots {
		d.lockForClear(s.ID)
		writes[i] = d.clearer(s.ID)
		s.Text = ""
		cleared[i] = s
	}
	d.engine.ApplyLocal(cleared...)

	return d.writeGroup(ctx, writes, true)
}

// lockForClear takes over the slot lock from a cancelled text burst, or
// acquires a fresh one.
func (d *Dispatcher) lockForClear(id int64) {
	if !d.debouncer.Cancel(id) {
		d.engine.LockSlot(id)
	}
}

func (d *Dispatcher) clearer(id int64) write {
	return write{id: id, do: func(ctx context.Context) (board.Slot, error) {
		return d.store.ClearSlotText(ctx, id)
	}}
}

// write is one store call in a group operation.
type write struct {
	id int64
	do func(context.Context) (board.Slot, error)
}

// writeGroup runs writes in parallel. One failure never cancels the others;
// all failures are joined. With unlockSlots, each slot lock is released with
// the slot hold as soon as its own write finishes.
func (d *Dispatcher) writeGroup(ctx context.Context, writes []write, unlockSlots bool) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, w := range writes {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, d.timing.RequestTimeout)
			defer cancel()

			slot, err := w.do(wctx)
			if unlockSlots {
				d.engine.UnlockSlot(w.id, d.timing.SlotLockHold)
			}
			if err != nil {
				d.logger.Warn("slot write failed", "slot", w.id, "error", err)
				d.engine.ReportError(err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("slot %d: %w", w.id, err))
				mu.Unlock()
				return nil
			}
			d.publish(ctx, broadcast.NewEntryUpdated(d.engine.Origin(), slot))
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Initialize creates any missing grid slots, replaces the view with the
// result and tells other clients to resync.
func (d *Dispatcher) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timing.RequestTimeout)
	defer cancel()

	slots, err := d.store.InitializeGrid(ctx)
	if err != nil {
		d.engine.ReportError(err)
		return fmt.Errorf("initialize grid: %w", err)
	}
	if slots == nil {
		return fmt.Errorf("initialize grid: %w", board.ErrMalformedResponse)
	}
	d.engine.ReplaceAll(slots)
	d.publish(ctx, broadcast.NewSyncAll(d.engine.Origin(), slots))
	return nil
}

// Flush writes every pending text edit now and waits for the writes.
func (d *Dispatcher) Flush() {
	d.debouncer.Flush()
}

// Close drops pending text edits and cancels writes still in flight.
func (d *Dispatcher) Close() {
	d.debouncer.Stop()
	d.cancel()
}

func (d *Dispatcher) publish(ctx context.Context, e broadcast.Event) {
	if ctx.Err() != nil {
		ctx = d.ctx
	}
	broadcast.Notify(ctx, d.channel, e, d.logger)
}
