package policy

import (
	"fmt"

	"github.com/roach88/queueboard/internal/board"
)

// Check plans checking row on side. The row's P1 slot becomes checked and
// every other checked slot on the side, including a stray checked P2,
// becomes unchecked.
func Check(slots []board.Slot, row int, side board.Side) (Plan, error) {
	rows, target, err := rowsOf(slots, row, side)
	if err != nil {
		return Plan{}, err
	}
	if target.P1 == nil {
		return Plan{}, fmt.Errorf("%s row %d has no P1 slot: %w", side, row, ErrRowNotFound)
	}

	plan := Plan{Side: side}
	for _, r := range rows {
		for _, s := range r.Slots() {
			after := s
			after.Checked = s.ID == target.P1.ID
			plan.add(s, after)
		}
	}
	return plan, nil
}
