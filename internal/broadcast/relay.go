package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Relay is an http.Handler that bridges WebSocket clients onto a Channel.
// Frames read from a client are published; events from the channel are
// written to every connected client.
type Relay struct {
	ch       Channel
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewRelay creates a relay over ch.
func NewRelay(ch Channel, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		ch: ch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the upgrade completes so the client never misses an
	// event published after its dial returns.
	send := make(chan []byte, sendBuffer)
	unsubscribe, err := rl.ch.Subscribe(ctx, func(e Event) {
		data, err := Encode(e)
		if err != nil {
			return
		}
		select {
		case send <- data:
		default:
			rl.logger.Warn("relay client too slow, dropping event", "event", e.Name)
		}
	})
	if err != nil {
		http.Error(w, "broadcast unavailable", http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	rl.logger.Debug("relay client connected", "remote", r.RemoteAddr)

	go rl.writePump(ctx, conn, send)
	rl.readPump(ctx, conn)
	rl.logger.Debug("relay client disconnected", "remote", r.RemoteAddr)
}

// readPump publishes every valid frame until the connection fails.
func (rl *Relay) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		e, err := Decode(msg)
		if err != nil {
			rl.logger.Warn("relay dropping malformed frame", "error", err)
			continue
		}
		Notify(ctx, rl.ch, e, rl.logger)
	}
}

// writePump is the connection's only writer.
func (rl *Relay) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
