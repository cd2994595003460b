package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/queueboard/internal/board"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	NoClear bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the board live",
		Long: `Follow the board live. The view is refreshed by broadcasts as they arrive
and by a full poll every poll interval.

With --format json one line is printed per change.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoClear, "no-clear", false, "do not clear the screen between frames")

	return cmd
}

type watchFrame struct {
	Version uint64       `json:"version"`
	Status  string       `json:"status"`
	Slots   []board.Slot `json:"slots"`
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.channel != nil {
		unsubscribe, err := s.engine.Attach(ctx, s.channel)
		if err != nil {
			return backendError("failed to subscribe", err)
		}
		defer unsubscribe()
	}

	changed := make(chan struct{}, 1)
	s.engine.OnChange(func(uint64) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- s.engine.Run(ctx) }()

	out := cmd.OutOrStdout()
	clearScreen := !opts.NoClear && opts.Format == "text"
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastStatus string
	var lastVersion uint64
	render := func() error {
		version := s.engine.Version()
		status := RenderStatus(s.engine.Status(), time.Now())
		if version == lastVersion && status == lastStatus {
			return nil
		}
		lastVersion, lastStatus = version, status
		return writeFrame(out, opts.Format, clearScreen, watchFrame{Version: version, Status: status, Slots: s.engine.Snapshot()})
	}

	for {
		select {
		case <-changed:
		case <-ticker.C:
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return WrapExitError(ExitFailure, "watch stopped", err)
			}
			return nil
		}
		if err := render(); err != nil {
			return err
		}
	}
}

func writeFrame(w io.Writer, format string, clearScreen bool, f watchFrame) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(f)
	}
	if clearScreen {
		if _, err := io.WriteString(w, "\033[H\033[2J"); err != nil {
			return err
		}
	}
	if err := RenderBoard(w, f.Slots); err != nil {
		return err
	}
	_, err := io.WriteString(w, f.Status+"\n\n")
	return err
}
