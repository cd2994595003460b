package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/queueboard/internal/board"
)

// withSession opens a session, runs fn and closes the session, flushing
// pending writes first.
func withSession(cmd *cobra.Command, opts *RootOptions, load bool, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	if load {
		if err := s.load(ctx); err != nil {
			return err
		}
		opts.formatter(cmd).VerboseLog("loaded %d slots", len(s.engine.Snapshot()))
	}
	return fn(ctx, s)
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create any missing grid slots",
		Long: `Create the 48 grid slots if they do not exist yet. Safe to run repeatedly
and concurrently; existing slots are left alone. Connected clients are told
to resync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, false, func(ctx context.Context, s *session) error {
				if err := s.dispatcher.Initialize(ctx); err != nil {
					return WrapExitError(ExitFailure, "failed to initialize grid", err)
				}
				slots := s.engine.Snapshot()
				f := opts.formatter(cmd)
				if f.Format == "json" {
					return f.Success(slots)
				}
				return f.Success(fmt.Sprintf("Board ready: %d slots", len(slots)))
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				slots := s.engine.Snapshot()
				f := opts.formatter(cmd)
				if f.Format == "json" {
					return f.Success(slots)
				}
				return RenderBoard(cmd.OutOrStdout(), slots)
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, false, func(ctx context.Context, s *session) error {
				entries, err := s.store.ListHistory(ctx, limit)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read history", err)
				}
				f := opts.formatter(cmd)
				if f.Format == "json" {
					return f.Success(entries)
				}
				return RenderHistory(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", board.DefaultHistoryLimit, "number of entries")
	return cmd
}

// NewTextCommand creates the text command.
func NewTextCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "text <slot-id> <text>",
		Short: "Set a slot's text",
		Long: `Set a slot's text. Accents are folded ("Zoë" is stored as "Zoe").

Example:
  queueboard text 7 "Ana"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.dispatcher.SetText(id, args[1]); err != nil {
					return WrapExitError(ExitCommandError, "cannot set text", err)
				}
				s.dispatcher.Flush()
				return reportSlot(cmd, opts, s, id)
			})
		},
	}
}

// NewCheckCommand creates the check command, or uncheck when checked is
// false.
func NewCheckCommand(opts *RootOptions, checked bool) *cobra.Command {
	use, short := "check", "Mark a row as playing"
	if !checked {
		use, short = "uncheck", "Finish a row and move it down the queue"
	}
	return &cobra.Command{
		Use:   use + " <row> <left|right>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, side, err := parseRow(args[0], args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.dispatcher.ToggleChecked(ctx, row, side, checked); err != nil {
					return WrapExitError(ExitFailure, use+" failed", err)
				}
				return reportSide(cmd, opts, s, side)
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <slot-id>",
		Short: "Clear a slot's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.dispatcher.ClearSlot(ctx, id); err != nil {
					return WrapExitError(ExitFailure, "clear failed", err)
				}
				return reportSlot(cmd, opts, s, id)
			})
		},
	}
}

// NewClearRowCommand creates the clear-row command.
func NewClearRowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-row <row> <left|right>",
		Short: "Clear both slots of a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, side, err := parseRow(args[0], args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.dispatcher.ClearRow(ctx, row, side); err != nil {
					return WrapExitError(ExitFailure, "clear-row failed", err)
				}
				return reportSide(cmd, opts, s, side)
			})
		},
	}
}

// reportSlot prints a slot after a write, failing if the write failed.
func reportSlot(cmd *cobra.Command, opts *RootOptions, s *session, id int64) error {
	if err := s.engine.Status().Err; err != nil {
		return WrapExitError(ExitFailure, "write failed", err)
	}
	slot, _ := s.engine.Slot(id)
	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(slot)
	}
	return f.Success(fmt.Sprintf("slot %d (%s row %d %s): %q", slot.ID, slot.Side, slot.RowIndex, slot.Position, slot.Text))
}

func reportSide(cmd *cobra.Command, opts *RootOptions, s *session, side board.Side) error {
	f := opts.formatter(cmd)
	if f.Format == "json" {
		var out []board.Slot
		for _, slot := range s.engine.Snapshot() {
			if slot.Side == side {
				out = append(out, slot)
			}
		}
		return f.Success(out)
	}
	return RenderBoard(cmd.OutOrStdout(), s.engine.Snapshot())
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid slot id %q", arg))
	}
	return id, nil
}

func parseRow(rowArg, sideArg string) (int, board.Side, error) {
	row, err := strconv.Atoi(rowArg)
	if err != nil || !board.ValidRow(row) {
		return 0, "", NewExitError(ExitCommandError, fmt.Sprintf("invalid row %q: must be 0-%d", rowArg, board.Rows-1))
	}
	side, err := board.ParseSide(sideArg)
	if err != nil {
		return 0, "", WrapExitError(ExitCommandError, "invalid side", err)
	}
	return row, side, nil
}
