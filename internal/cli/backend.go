package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/config"
	"github.com/roach88/queueboard/internal/dispatch"
	"github.com/roach88/queueboard/internal/engine"
	"github.com/roach88/queueboard/internal/pgstore"
	"github.com/roach88/queueboard/internal/remote"
	"github.com/roach88/queueboard/internal/store"
)

// closer releases a backend resource.
type closer func() error

// openStore picks the store named by cfg: the HTTP API when a server is
// set, PostgreSQL when a URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (engine.Store, closer, error) {
	switch {
	case cfg.Server != "":
		c, err := remote.New(cfg.Server, remote.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using remote store", "server", cfg.Server)
		return c, func() error { return nil }, nil
	case cfg.PGURL != "":
		st, err := pgstore.Open(ctx, cfg.PGURL, cfg.HistoryRetention)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using postgres store")
		return st, st.Close, nil
	}
	st, err := store.Open(cfg.DB, store.WithHistoryRetention(cfg.HistoryRetention))
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using sqlite store", "path", cfg.DB)
	return st, st.Close, nil
}

// openRedis connects to the Redis named by cfg.
func openRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) (broadcast.Channel, closer, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return broadcast.NewRedis(client, cfg.Channel, logger), client.Close, nil
}

// openClientChannel picks the broadcast channel for a client command: the
// server's WebSocket relay, Redis, or none for a purely local database.
func openClientChannel(ctx context.Context, cfg config.Config, logger *slog.Logger) (broadcast.Channel, closer, error) {
	switch {
	case cfg.Server != "":
		c, err := remote.New(cfg.Server)
		if err != nil {
			return nil, nil, err
		}
		ws, err := broadcast.DialWebSocket(ctx, c.WebSocketURL(), logger)
		if err != nil {
			return nil, nil, err
		}
		return ws, ws.Close, nil
	case cfg.RedisURL != "":
		return openRedis(ctx, cfg, logger)
	}
	return nil, func() error { return nil }, nil
}

// session bundles the pieces a client command needs.
type session struct {
	store      engine.Store
	channel    broadcast.Channel
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	closers    []closer
	logger     *slog.Logger
}

// openSession connects to the configured backends and loads the board.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg := opts.Config
	s := &session{logger: opts.Logger}

	st, closeStore, err := openStore(ctx, cfg, s.logger)
	if err != nil {
		return nil, backendError("failed to open store", err)
	}
	s.store = st
	s.closers = append(s.closers, closeStore)

	ch, closeChannel, err := openClientChannel(ctx, cfg, s.logger)
	if err != nil {
		s.Close()
		return nil, backendError("failed to connect broadcast channel", err)
	}
	s.channel = ch
	s.closers = append(s.closers, closeChannel)

	s.engine = engine.New(st, engine.WithTiming(cfg.Timing()), engine.WithLogger(s.logger))
	s.dispatcher = dispatch.New(s.engine, st, dispatch.WithChannel(ch), dispatch.WithLogger(s.logger))
	return s, nil
}

// load polls the board once so row lookups see current data.
func (s *session) load(ctx context.Context) error {
	if err := s.engine.Poll(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to load board", err)
	}
	return nil
}

// Close flushes pending writes and releases backends in reverse order.
func (s *session) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Flush()
		s.dispatcher.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("error closing backend", "error", err)
		}
	}
}
