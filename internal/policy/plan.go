package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/queueboard/internal/board"
)

// ErrNotChecked is returned by Uncheck when the row is not the checked row.
var ErrNotChecked = errors.New("row is not checked")

// ErrRowNotFound is returned when the view has no slots for the row.
var ErrRowNotFound = fmt.Errorf("row %w", board.ErrNotFound)

// Change is one slot's planned transition.
type Change struct {
	Before board.Slot
	After  board.Slot
	Patch  board.SlotPatch
}

// Plan is the set of slot changes for one group operation on one side.
type Plan struct {
	Side    board.Side
	Changes []Change
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Changes) == 0
}

// After returns the planned slot values, for optimistic application.
func (p Plan) After() []board.Slot {
	out := make([]board.Slot, len(p.Changes))
	for i, c := range p.Changes {
		out[i] = c.After
	}
	return out
}

func (p Plan) String() string {
	if p.Empty() {
		return string(p.Side) + ": no changes"
	}
	parts := make([]string, len(p.Changes))
	for i, c := range p.Changes {
		parts[i] = fmt.Sprintf("%d %s", c.Before.ID, c.Patch)
	}
	return string(p.Side) + ": " + strings.Join(parts, ", ")
}

func (p *Plan) add(before, after board.Slot) {
	patch := board.Diff(before, after)
	if patch.IsEmpty() {
		return
	}
	p.Changes = append(p.Changes, Change{Before: before, After: after, Patch: patch})
}

// rowsOf deduplicates the view and returns the side's rows plus the target.
func rowsOf(slots []board.Slot, row int, side board.Side) ([]board.Row, board.Row, error) {
	if !board.ValidRow(row) {
		return nil, board.Row{}, fmt.Errorf("row %d out of range [0,%d)", row, board.Rows)
	}
	rows := board.RowsOf(board.Dedupe(slots), side)
	for _, r := range rows {
		if r.Index == row {
			return rows, r, nil
		}
	}
	return nil, board.Row{}, fmt.Errorf("%s row %d: %w", side, row, ErrRowNotFound)
}
