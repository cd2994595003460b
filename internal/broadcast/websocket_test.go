package broadcast

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func startRelay(t *testing.T) (*Memory, string) {
	t.Helper()
	hub := NewMemory()
	srv := httptest.NewServer(NewRelay(hub, nil))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRelay_ServerToClient(t *testing.T) {
	hub, url := startRelay(t)
	ctx := context.Background()

	client, err := DialWebSocket(ctx, url, nil)
	require.NoError(t, err)
	defer client.Close()

	got := make(chan Event, 1)
	_, err = client.Subscribe(ctx, func(e Event) { got <- e })
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, NewEntryUpdated("server", board.Slot{ID: 11, Text: "hi"})))

	select {
	case e := <-got:
		assert.Equal(t, EntryUpdated, e.Name)
		assert.Equal(t, "hi", e.Slot.Text)
	case <-time.After(timeout):
		t.Fatal("event not relayed to client")
	}
}

func TestRelay_ClientToServer(t *testing.T) {
	hub, url := startRelay(t)
	ctx := context.Background()

	got := make(chan Event, 4)
	_, err := hub.Subscribe(ctx, func(e Event) {
		if e.Origin == "client" {
			got <- e
		}
	})
	require.NoError(t, err)

	client, err := DialWebSocket(ctx, url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Publish(ctx, NewSyncAll("client", []board.Slot{{ID: 1}, {ID: 2}})))

	select {
	case e := <-got:
		assert.Equal(t, SyncAll, e.Name)
		assert.Len(t, e.Slots, 2)
	case <-time.After(timeout):
		t.Fatal("client event not published to hub")
	}
}

func TestDialWebSocket_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialWebSocket(ctx, "ws://127.0.0.1:1/ws", nil)
	assert.Error(t, err)
}
