package broadcast

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
)

func TestMemory_PublishSubscribe(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var got []Event
	unsub, err := m.Subscribe(ctx, func(e Event) { got = append(got, e) })
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, NewEntryUpdated("a", board.Slot{ID: 1})))
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Slot.ID)

	unsub()
	require.NoError(t, m.Publish(ctx, NewEntryUpdated("a", board.Slot{ID: 2})))
	assert.Len(t, got, 1, "no delivery after unsubscribe")
	assert.Equal(t, 0, m.Subscribers())
}

func TestMemory_ContextEndsSubscription(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Subscribe(ctx, func(Event) {})
	require.NoError(t, err)
	require.Equal(t, 1, m.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return m.Subscribers() == 0 }, timeout, tick)
}

func TestMemory_HandlerMayPublish(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	count := 0
	_, err := m.Subscribe(ctx, func(e Event) {
		count++
		if e.Name == SyncAll {
			_ = m.Publish(ctx, NewEntryUpdated("nested", board.Slot{ID: 1}))
		}
	})
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, NewSyncAll("root", []board.Slot{{ID: 1}})))
	assert.Equal(t, 2, count)
}

func TestMemory_RejectsInvalidEvent(t *testing.T) {
	m := NewMemory()
	assert.Error(t, m.Publish(context.Background(), Event{Name: EntryUpdated}))
}

type failingChannel struct{}

func (failingChannel) Publish(context.Context, Event) error { return errors.New("down") }
func (failingChannel) Subscribe(context.Context, Handler) (func(), error) {
	return func() {}, nil
}

func TestNotify_LogsInsteadOfFailing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Notify(context.Background(), failingChannel{}, NewEntryUpdated("a", board.Slot{ID: 1}), logger)
	assert.Contains(t, buf.String(), "broadcast publish failed")

	// nil channel is a no-op
	Notify(context.Background(), nil, NewEntryUpdated("a", board.Slot{ID: 1}), logger)
}
