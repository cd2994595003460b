package policy

import (
	"github.com/roach88/queueboard/internal/board"
)

// Uncheck plans unchecking row on side and moving it down the queue.
//
// The other rows keep their relative order: populated ones take indices
// 0..k-1, the unchecked row takes k, and empty rows follow. With every row
// populated the unchecked row ends up last. Text travels with the slot ID.
//
// Returns ErrNotChecked, and an empty plan, if the row is not checked.
func Uncheck(slots []board.Slot, row int, side board.Side) (Plan, error) {
	rows, target, err := rowsOf(slots, row, side)
	if err != nil {
		return Plan{}, err
	}
	if !target.Checked() {
		return Plan{Side: side}, ErrNotChecked
	}

	var populated, empty []board.Row
	for _, r := range rows {
		if r.Index == target.Index {
			continue
		}
		if r.Populated() {
			populated = append(populated, r)
		} else {
			empty = append(empty, r)
		}
	}
	order := make([]board.Row, 0, len(rows))
	order = append(order, populated...)
	order = append(order, target)
	order = append(order, empty...)

	plan := Plan{Side: side}
	for idx, r := range order {
		for _, s := range r.Slots() {
			after := s
			after.RowIndex = idx
			if r.Index == target.Index {
				after.Checked = false
			}
			plan.add(s, after)
		}
	}
	return plan, nil
}
