package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by WebSocket.Publish while reconnecting.
var ErrNotConnected = errors.New("websocket not connected")

// WebSocket is the client side of Relay. It keeps one connection open and
// reconnects with exponential backoff when it drops. Events received while
// disconnected are lost; the engine's poll loop repairs the view.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	next     int
	handlers map[int]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

// DialWebSocket connects to a Relay at url (ws:// or wss://). The first dial
// is synchronous; later reconnects happen in the background until Close.
func DialWebSocket(ctx context.Context, url string, logger *slog.Logger) (*WebSocket, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WebSocket{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger,
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}

	conn, _, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	w.conn = conn

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(runCtx, conn)
	return w, nil
}

// Publish writes e to the relay.
func (w *WebSocket) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket publish: %w", err)
	}
	return nil
}

// Subscribe registers h for every event received from the relay.
func (w *WebSocket) Subscribe(ctx context.Context, h Handler) (func(), error) {
	w.mu.Lock()
	id := w.next
	w.next++
	w.handlers[id] = h
	w.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.handlers, id)
			w.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

// Close stops reconnecting and closes the connection.
func (w *WebSocket) Close() error {
	w.cancel()
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	<-w.done
	return nil
}

// run reads from conn until it fails, then reconnects until ctx ends.
func (w *WebSocket) run(ctx context.Context, conn *websocket.Conn) {
	defer close(w.done)
	for {
		w.readLoop(conn)

		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("broadcast connection lost, reconnecting", "url", w.url)

		next, err := w.reconnect(ctx)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			next.Close()
			return
		}
		conn = next
	}
}

func (w *WebSocket) reconnect(ctx context.Context) (*websocket.Conn, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 250 * time.Millisecond
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 0 // retry until Close

	var conn *websocket.Conn
	op := func() error {
		c, _, err := w.dialer.DialContext(ctx, w.url, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Debug("broadcast redial failed", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	w.logger.Info("broadcast reconnected", "url", w.url)
	return conn, nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		e, err := Decode(msg)
		if err != nil {
			w.logger.Warn("dropping malformed broadcast", "error", err)
			continue
		}

		w.mu.Lock()
		handlers := make([]Handler, 0, len(w.handlers))
		for _, h := range w.handlers {
			handlers = append(handlers, h)
		}
		w.mu.Unlock()

		for _, h := range handlers {
			h(e)
		}
	}
}
