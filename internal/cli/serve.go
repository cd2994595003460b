package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/queueboard/internal/api"
	"github.com/roach88/queueboard/internal/broadcast"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, if set, receives the bound address once the server listens.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the board over HTTP",
		Long: `Serve the board's HTTP API and WebSocket broadcast relay.

Slots live in SQLite (--db) or PostgreSQL (--pg). Broadcasts go through
Redis when --redis is set, otherwise through an in-process hub.

Example:
  queueboard serve --db ./board.db --addr :8080
  queueboard serve --pg postgres://localhost/board --redis redis://localhost:6379`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	if cmd.Flags().Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if cfg.Server != "" {
		return NewExitError(ExitCommandError, "serve needs a database, not --server")
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return backendError("failed to open store", err)
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	var ch broadcast.Channel = broadcast.NewMemory()
	if cfg.RedisURL != "" {
		redisCh, closeRedis, err := openRedis(ctx, cfg, logger)
		if err != nil {
			return backendError("failed to connect broadcast channel", err)
		}
		defer closeRedis()
		ch = redisCh
	}

	handler := api.NewServer(st,
		api.WithChannel(ch),
		api.WithLimiter(api.NewLimiter(cfg.RateLimit, cfg.RateBurst)),
		api.WithLogger(logger),
	)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("server started", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving queueboard on %s\n", addr)
	if opts.Ready != nil {
		opts.Ready <- addr
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		// Hijacked WebSocket connections are not tracked by Shutdown.
		_ = httpServer.Close()
	}
	logger.Info("server stopped gracefully")
	return nil
}
