package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/clock"
	"github.com/roach88/queueboard/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine returns an engine whose view holds a fresh 48-slot grid.
func newTestEngine(t *testing.T) (*Engine, *testutil.FakeStore, *clock.Fake) {
	t.Helper()
	st := testutil.NewGridStore()
	clk := clock.NewFake()
	e := New(st, WithClock(clk), WithOrigin("self"), WithLogger(discardLogger()))
	require.NoError(t, e.Poll(context.Background()))
	require.Len(t, e.Snapshot(), board.SlotCount)
	st.ResetCalls()
	return e, st, clk
}

func viewText(t *testing.T, e *Engine, id int64) string {
	t.Helper()
	s, ok := e.Slot(id)
	require.True(t, ok, "slot %d missing from view", id)
	return s.Text
}

var slot7 = testutil.GridID(1, board.Right, board.P1)

func TestNew_GeneratesOrigin(t *testing.T) {
	e := New(testutil.NewFakeStore())
	assert.Len(t, e.Origin(), 36, "UUID string")
	assert.Equal(t, DefaultTiming(), e.Timing())
}

func TestNew_OriginGenerator(t *testing.T) {
	gen := NewFixedGenerator("tab-a")
	a := New(testutil.NewFakeStore(), WithOriginGenerator(gen))
	b := New(testutil.NewFakeStore(), WithOriginGenerator(gen))
	fixed := New(testutil.NewFakeStore(), WithOriginGenerator(gen), WithOrigin("pinned"))

	assert.Equal(t, "tab-a", a.Origin())
	assert.Equal(t, "origin-2", b.Origin())
	assert.Equal(t, "pinned", fixed.Origin())
}

func TestApplyLocal_AlwaysApplies(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.LockSlot(slot7)
	e.MarkTyping()
	next, ok := e.PatchLocal(slot7, board.TextPatch("mine"))
	require.True(t, ok)
	assert.Equal(t, "mine", next.Text)
	assert.Equal(t, "mine", viewText(t, e, slot7))

	_, ok = e.PatchLocal(9999, board.TextPatch("x"))
	assert.False(t, ok)
}

// P6: applying an identical snapshot twice changes nothing observable.
func TestPoll_IdempotentApply(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	st.Set(slot7, board.TextPatch("Ana"))
	require.NoError(t, e.Poll(ctx))
	v := e.Version()
	assert.Equal(t, "Ana", viewText(t, e, slot7))

	require.NoError(t, e.Poll(ctx))
	assert.Equal(t, v, e.Version(), "second identical poll must not bump version")

	assert.Equal(t, 0, e.ApplyPoll(st.Slots()))
	assert.Equal(t, v, e.Version())
}

func TestApplyPoll_IgnoresTimestampOnlyChanges(t *testing.T) {
	e, st, _ := newTestEngine(t)

	slots := st.Slots()
	for i := range slots {
		slots[i].UpdatedAt = slots[i].UpdatedAt.Add(time.Hour)
	}
	v := e.Version()
	assert.Equal(t, 0, e.ApplyPoll(slots))
	assert.Equal(t, v, e.Version())
}

// P3: a poll during a slot lock does not change that slot; after expiry the
// next poll applies.
func TestPoll_LockShadowing(t *testing.T) {
	e, st, clk := newTestEngine(t)
	ctx := context.Background()
	hold := e.Timing().SlotLockHold

	e.LockSlot(slot7)
	e.PatchLocal(slot7, board.TextPatch("optimistic"))
	st.Set(slot7, board.TextPatch("stale"))

	require.NoError(t, e.Poll(ctx))
	assert.Equal(t, "optimistic", viewText(t, e, slot7), "pending write shadows poll")

	e.UnlockSlot(slot7, hold)
	clk.Advance(hold - time.Millisecond)
	require.NoError(t, e.Poll(ctx))
	assert.Equal(t, "optimistic", viewText(t, e, slot7), "hold still active")

	clk.Advance(time.Millisecond)
	require.NoError(t, e.Poll(ctx))
	assert.Equal(t, "stale", viewText(t, e, slot7), "poll trusted after expiry")
}

func TestPoll_LockDoesNotShadowOtherSlots(t *testing.T) {
	e, st, _ := newTestEngine(t)
	other := testutil.GridID(5, board.Left, board.P2)

	e.LockSlot(slot7)
	st.Set(other, board.TextPatch("Bea"))
	st.Set(slot7, board.TextPatch("ignored"))

	require.NoError(t, e.Poll(context.Background()))
	assert.Equal(t, "Bea", viewText(t, e, other))
	assert.Equal(t, "", viewText(t, e, slot7))
}

func TestPoll_SideLockCoversWholeSide(t *testing.T) {
	e, st, clk := newTestEngine(t)
	left := testutil.GridID(3, board.Left, board.P1)
	right := testutil.GridID(3, board.Right, board.P1)

	e.LockSide(board.Left)
	st.Set(left, board.CheckedPatch(true))
	st.Set(right, board.CheckedPatch(true))

	require.NoError(t, e.Poll(context.Background()))
	l, _ := e.Slot(left)
	r, _ := e.Slot(right)
	assert.False(t, l.Checked, "left side locked")
	assert.True(t, r.Checked, "right side free")

	e.UnlockSide(board.Left, e.Timing().SideLockHold)
	clk.Advance(e.Timing().SideLockHold)
	require.NoError(t, e.Poll(context.Background()))
	l, _ = e.Slot(left)
	assert.True(t, l.Checked)
}

// P5: while typing, no broadcast or poll touches the view.
func TestTypingFreeze(t *testing.T) {
	e, st, clk := newTestEngine(t)
	other := testutil.GridID(0, board.Left, board.P1)

	e.MarkTyping()
	assert.True(t, e.Typing())

	e.HandleEvent(broadcast.NewEntryUpdated("peer", board.Slot{ID: slot7, RowIndex: 1, Side: board.Right, Position: board.P1, Text: "fresher"}))
	assert.Equal(t, "", viewText(t, e, slot7), "broadcast dropped while typing")

	st.Set(other, board.TextPatch("polled"))
	require.NoError(t, e.Poll(context.Background()))
	assert.Equal(t, "", viewText(t, e, other), "poll dropped while typing, even for unlocked slots")

	clk.Advance(e.Timing().TypingHold)
	assert.False(t, e.Typing())
	require.NoError(t, e.Poll(context.Background()))
	assert.Equal(t, "polled", viewText(t, e, other))
}

func TestMarkTyping_Extends(t *testing.T) {
	e, _, clk := newTestEngine(t)

	e.MarkTyping()
	clk.Advance(800 * time.Millisecond)
	e.MarkTyping()
	clk.Advance(800 * time.Millisecond)
	assert.True(t, e.Typing(), "freeze measured from the last keystroke")
	clk.Advance(200 * time.Millisecond)
	assert.False(t, e.Typing())
}

func TestHandleEvent_EntryUpdated(t *testing.T) {
	e, _, _ := newTestEngine(t)

	updated := board.Slot{ID: slot7, RowIndex: 1, Side: board.Right, Position: board.P1, Text: "Zoe"}
	e.HandleEvent(broadcast.NewEntryUpdated("peer", updated))
	assert.Equal(t, "Zoe", viewText(t, e, slot7))

	v := e.Version()
	e.HandleEvent(broadcast.NewEntryUpdated("peer", updated))
	assert.Equal(t, v, e.Version(), "duplicate broadcast is a no-op")
}

func TestHandleEvent_IgnoresOwnOrigin(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.HandleEvent(broadcast.NewEntryUpdated("self", board.Slot{ID: slot7, RowIndex: 1, Side: board.Right, Position: board.P1, Text: "echo"}))
	assert.Equal(t, "", viewText(t, e, slot7))
}

func TestHandleEvent_BroadcastRespectsLock(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.LockSlot(slot7)
	e.PatchLocal(slot7, board.TextPatch("mine"))
	e.HandleEvent(broadcast.NewEntryUpdated("peer", board.Slot{ID: slot7, RowIndex: 1, Side: board.Right, Position: board.P1, Text: "theirs"}))
	assert.Equal(t, "mine", viewText(t, e, slot7))
}

func TestResync_DroppedWhileAnyLockHeld(t *testing.T) {
	e, st, clk := newTestEngine(t)
	unrelated := testutil.GridID(9, board.Left, board.P1)

	st.Set(unrelated, board.TextPatch("from resync"))
	snapshot := st.Slots()

	e.LockSlot(slot7)
	assert.False(t, e.ApplyResync(snapshot), "dropped entirely, not partially merged")
	assert.Equal(t, "", viewText(t, e, unrelated))

	e.UnlockSlot(slot7, time.Second)
	clk.Advance(time.Second)
	assert.False(t, e.AnyLocked())

	e.HandleEvent(broadcast.NewSyncAll("peer", snapshot))
	assert.Equal(t, "from resync", viewText(t, e, unrelated))
}

func TestResync_DroppedWhileTyping(t *testing.T) {
	e, st, _ := newTestEngine(t)

	st.Set(slot7, board.TextPatch("x"))
	e.MarkTyping()
	assert.False(t, e.ApplyResync(st.Slots()))
}

func TestOnChange(t *testing.T) {
	e, _, _ := newTestEngine(t)

	var versions []uint64
	e.OnChange(func(v uint64) {
		versions = append(versions, v)
		_ = e.Snapshot() // listeners may read the view
	})

	e.PatchLocal(slot7, board.TextPatch("a"))
	e.PatchLocal(slot7, board.TextPatch("a"))
	e.PatchLocal(slot7, board.TextPatch("b"))

	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
}

func TestRow_ResolvesFromCurrentView(t *testing.T) {
	e, _, _ := newTestEngine(t)

	row, ok := e.Row(4, board.Right)
	require.True(t, ok)
	assert.Equal(t, testutil.GridID(4, board.Right, board.P1), row.P1.ID)
	assert.Equal(t, testutil.GridID(4, board.Right, board.P2), row.P2.ID)

	// Swap rows 4 and 11; the lookup follows the view, not the original identity.
	four, eleven := 4, 11
	e.PatchLocal(testutil.GridID(4, board.Right, board.P1), board.SlotPatch{RowIndex: &eleven})
	e.PatchLocal(testutil.GridID(11, board.Right, board.P1), board.SlotPatch{RowIndex: &four})
	row, _ = e.Row(11, board.Right)
	assert.Equal(t, testutil.GridID(4, board.Right, board.P1), row.P1.ID)
	assert.Equal(t, testutil.GridID(11, board.Right, board.P2), row.P2.ID)
}

func TestReplaceAll(t *testing.T) {
	e, st, _ := newTestEngine(t)

	e.LockSlot(slot7)
	st.Set(slot7, board.TextPatch("server"))
	e.ReplaceAll(st.Slots())
	assert.Equal(t, "server", viewText(t, e, slot7), "ReplaceAll ignores locks")

	v := e.Version()
	e.ReplaceAll(st.Slots())
	assert.Equal(t, v, e.Version())
}
