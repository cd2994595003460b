package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// Store operation names recorded in Call.Op.
const (
	OpList       = "list"
	OpGet        = "get"
	OpUpdate     = "update"
	OpClear      = "clear"
	OpInitialize = "initialize"
	OpHistory    = "history"
)

// Call is one recorded store invocation.
type Call struct {
	Op    string
	ID    int64
	Patch board.SlotPatch
}

func (c Call) String() string {
	switch c.Op {
	case OpUpdate:
		return fmt.Sprintf("%s %d %s", c.Op, c.ID, c.Patch)
	case OpClear, OpGet:
		return fmt.Sprintf("%s %d", c.Op, c.ID)
	}
	return c.Op
}

// FakeStore is an in-memory store with call recording, injectable errors
// and gates that hold calls in flight.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeStore struct {
	mu        sync.Mutex
	slots     map[int64]board.Slot
	history   []board.HistoryEntry
	calls     []Call
	nextID    int64
	now       func() time.Time
	errs      map[string]error
	slotErrs  map[int64]error
	gates     map[string]chan struct{}
	arrivals  chan Call
	nilResult bool
}

// NewFakeStore creates an empty store. Call InitializeGrid or Seed to
// populate it.
func NewFakeStore() *FakeStore {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	return &FakeStore{
		slots:    make(map[int64]board.Slot),
		errs:     make(map[string]error),
		slotErrs: make(map[int64]error),
		gates:    make(map[string]chan struct{}),
		arrivals: make(chan Call, 256),
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Millisecond)
		},
	}
}

// NewGridStore returns a store already holding the 48 canonical slots, with
// IDs 1..48 in canonical order.
func NewGridStore() *FakeStore {
	s := NewFakeStore()
	s.initialize()
	return s
}

// GridID is the ID NewGridStore assigns to a canonical identity.
func GridID(row int, side board.Side, pos board.Position) int64 {
	id := int64(row*4 + 1)
	if side == board.Right {
		id += 2
	}
	if pos == board.P2 {
		id++
	}
	return id
}

// Seed overwrites slots by ID without recording calls.
func (s *FakeStore) Seed(slots ...board.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.slots[slot.ID] = slot
		if slot.ID > s.nextID {
			s.nextID = slot.ID
		}
	}
}

// Set edits a stored slot in place without recording a call, as if another
// client had written it.
func (s *FakeStore) Set(id int64, patch board.SlotPatch) board.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := patch.Apply(s.slots[id])
	s.slots[id] = slot
	return slot
}

// Fail makes every call to op return err. A nil err clears it.
func (s *FakeStore) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// FailSlot makes update and clear calls for id return err.
func (s *FakeStore) FailSlot(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotErrs[id] = err
}

// ReturnNil makes ListSlots return a nil slice with no error.
func (s *FakeStore) ReturnNil(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nilResult = v
}

// Hold blocks every subsequent call to op until Release(op) or the call's
// context ends. Each held call is announced on Arrivals.
func (s *FakeStore) Hold(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gates[op]; !ok {
		s.gates[op] = make(chan struct{})
	}
}

// Release lets held calls to op proceed and stops holding new ones.
func (s *FakeStore) Release(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gates[op]; ok {
		close(g)
		delete(s.gates, op)
	}
}

// Arrivals announces calls that reached a Hold gate.
func (s *FakeStore) Arrivals() <-chan Call {
	return s.arrivals
}

// Calls returns a copy of the recorded calls in arrival order.
func (s *FakeStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns the recorded calls for op.
func (s *FakeStore) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns update and clear calls rendered as sorted strings. Sorting
// makes parallel dispatch order irrelevant.
func (s *FakeStore) Writes() []string {
	var out []string
	for _, c := range s.Calls() {
		if c.Op == OpUpdate || c.Op == OpClear {
			out = append(out, c.String())
		}
	}
	sort.Strings(out)
	return out
}

// ResetCalls forgets recorded calls.
func (s *FakeStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Slots returns the stored slots in canonical order.
func (s *FakeStore) Slots() []board.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Dump renders the side's rows as "row: P1text|P2text*" lines, where *
// marks a checked row. Used for readable assertions.
func (s *FakeStore) Dump(side board.Side) string {
	return DumpSlots(s.Slots(), side)
}

// DumpSlots renders slots the way Dump does.
func DumpSlots(slots []board.Slot, side board.Side) string {
	var b strings.Builder
	for _, r := range board.RowsOf(slots, side) {
		fmt.Fprintf(&b, "%d: %s|%s", r.Index, text(r.P1), text(r.P2))
		if r.Checked() {
			b.WriteString("*")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func text(s *board.Slot) string {
	if s == nil {
		return "-"
	}
	return s.Text
}

// enter records c, applies injected errors and waits at any gate.
func (s *FakeStore) enter(ctx context.Context, c Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	err := s.errs[c.Op]
	if err == nil && (c.Op == OpUpdate || c.Op == OpClear) {
		err = s.slotErrs[c.ID]
	}
	gate := s.gates[c.Op]
	s.mu.Unlock()

	if gate != nil {
		s.arrivals <- c
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *FakeStore) ListSlots(ctx context.Context) ([]board.Slot, error) {
	if err := s.enter(ctx, Call{Op: OpList}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nilResult {
		return nil, nil
	}
	return s.sortedLocked(), nil
}

func (s *FakeStore) GetSlot(ctx context.Context, id int64) (board.Slot, error) {
	if err := s.enter(ctx, Call{Op: OpGet, ID: id}); err != nil {
		return board.Slot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, board.ErrNotFound)
	}
	return slot, nil
}

func (s *FakeStore) UpdateSlot(ctx context.Context, id int64, patch board.SlotPatch) (board.Slot, error) {
	if err := s.enter(ctx, Call{Op: OpUpdate, ID: id, Patch: patch}); err != nil {
		return board.Slot{}, err
	}
	return s.write(id, patch)
}

func (s *FakeStore) ClearSlotText(ctx context.Context, id int64) (board.Slot, error) {
	if err := s.enter(ctx, Call{Op: OpClear, ID: id}); err != nil {
		return board.Slot{}, err
	}
	return s.write(id, board.TextPatch(""))
}

func (s *FakeStore) InitializeGrid(ctx context.Context) ([]board.Slot, error) {
	if err := s.enter(ctx, Call{Op: OpInitialize}); err != nil {
		return nil, err
	}
	s.initialize()
	return s.Slots(), nil
}

func (s *FakeStore) ListHistory(ctx context.Context, limit int) ([]board.HistoryEntry, error) {
	if err := s.enter(ctx, Call{Op: OpHistory}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = board.DefaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []board.HistoryEntry{}
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *FakeStore) write(id int64, patch board.SlotPatch) (board.Slot, error) {
	if err := patch.Validate(); err != nil {
		return board.Slot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.slots[id]
	if !ok {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, board.ErrNotFound)
	}
	now := s.now()
	after := patch.Apply(before)
	after.UpdatedAt = now
	s.slots[id] = after
	for _, e := range board.HistoryFor(before, after, now) {
		e.ID = int64(len(s.history) + 1)
		s.history = append(s.history, e)
	}
	return after, nil
}

func (s *FakeStore) initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	have := make(map[board.Key]bool, len(s.slots))
	for _, slot := range s.slots {
		have[slot.Key()] = true
	}
	now := s.now()
	for _, k := range board.CanonicalKeys() {
		if have[k] {
			continue
		}
		s.nextID++
		s.slots[s.nextID] = board.Slot{
			ID:        s.nextID,
			RowIndex:  k.RowIndex,
			Side:      k.Side,
			Position:  k.Position,
			UpdatedAt: now,
		}
	}
}

func (s *FakeStore) sortedLocked() []board.Slot {
	out := make([]board.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	board.SortSlots(out)
	return out
}
