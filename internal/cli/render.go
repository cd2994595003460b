package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/engine"
)

const cellWidth = 14

// RenderBoard writes the grid as a fixed-width table, one line per row.
func RenderBoard(w io.Writer, slots []board.Slot) error {
	left := rowsByIndex(slots, board.Left)
	right := rowsByIndex(slots, board.Right)

	var b strings.Builder
	fmt.Fprintf(&b, "ROW %-3s %-*s %-*s | %-3s %-*s %s\n",
		"L", cellWidth, "P1", cellWidth, "P2", "R", cellWidth, "P1", "P2")
	for i := 0; i < board.Rows; i++ {
		l, r := left[i], right[i]
		fmt.Fprintf(&b, "%3d %s %-*s %-*s | %s %-*s %s\n", i,
			checkbox(l), cellWidth, cell(l.P1), cellWidth, cell(l.P2),
			checkbox(r), cellWidth, cell(r.P1), cell(r.P2))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderStatus describes the sync status in one line.
func RenderStatus(s engine.Status, now time.Time) string {
	switch {
	case s.Err == nil && s.LastSync.IsZero():
		return "connecting..."
	case s.Err == nil:
		return "synced " + s.LastSync.Local().Format("15:04:05")
	case !s.Connected:
		return "offline: " + s.Err.Error()
	}
	if d := s.RetryIn(now); d > 0 {
		return fmt.Sprintf("rate limited, retry in %ds", int(d.Round(time.Second)/time.Second))
	}
	return "error: " + s.Err.Error()
}

// RenderHistory writes one line per entry, newest first.
func RenderHistory(w io.Writer, entries []board.HistoryEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %-5s row %2d %s  %-12s %s -> %s\n",
			e.Timestamp.UTC().Format(time.RFC3339), e.Side, e.RowIndex, e.Position,
			e.Action, quoted(e.OldValue), quoted(e.NewValue))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func rowsByIndex(slots []board.Slot, side board.Side) [board.Rows]board.Row {
	var out [board.Rows]board.Row
	for _, r := range board.RowsOf(board.Dedupe(slots), side) {
		if board.ValidRow(r.Index) {
			out[r.Index] = r
		}
	}
	return out
}

func checkbox(r board.Row) string {
	if r.Checked() {
		return "[x]"
	}
	return "[ ]"
}

func cell(s *board.Slot) string {
	if s == nil || s.Text == "" {
		return "."
	}
	if utf8.RuneCountInString(s.Text) <= cellWidth {
		return s.Text
	}
	runes := []rune(s.Text)
	return string(runes[:cellWidth-1]) + "~"
}

func quoted(s *string) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%q", *s)
}
