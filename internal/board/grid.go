package board

import "sort"

// CanonicalKeys returns the 48 slot identities in (row, side, position) order.
func CanonicalKeys() []Key {
	keys := make([]Key, 0, SlotCount)
	for row := 0; row < Rows; row++ {
		for _, side := range Sides {
			for _, pos := range Positions {
				keys = append(keys, Key{RowIndex: row, Side: side, Position: pos})
			}
		}
	}
	return keys
}

// SortSlots orders slots by (row, side, position), breaking ties by ID.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		ki, kj := slots[i].Key(), slots[j].Key()
		if ki != kj {
			return ki.Less(kj)
		}
		return slots[i].ID < slots[j].ID
	})
}

// Row is the pair of slots that share a row on one side.
type Row struct {
	Index int
	Side  Side
	P1    *Slot
	P2    *Slot
}

// Checked reports whether the row's checkbox is set. The checkbox lives on
// P1, but a stray checked P2 also counts.
func (r Row) Checked() bool {
	return (r.P1 != nil && r.P1.Checked) || (r.P2 != nil && r.P2.Checked)
}

// Populated reports whether either slot carries user state.
func (r Row) Populated() bool {
	return (r.P1 != nil && r.P1.Populated()) || (r.P2 != nil && r.P2.Populated())
}

// Slots returns the row's non-nil slots, P1 first.
func (r Row) Slots() []Slot {
	var out []Slot
	if r.P1 != nil {
		out = append(out, *r.P1)
	}
	if r.P2 != nil {
		out = append(out, *r.P2)
	}
	return out
}

// RowsOf groups the slots of one side by row index, ascending. Slots must
// already be deduplicated by identity; if not, the later slot wins.
func RowsOf(slots []Slot, side Side) []Row {
	byRow := make(map[int]*Row)
	for i := range slots {
		s := slots[i]
		if s.Side != side {
			continue
		}
		r, ok := byRow[s.RowIndex]
		if !ok {
			r = &Row{Index: s.RowIndex, Side: side}
			byRow[s.RowIndex] = r
		}
		if s.Position == P2 {
			r.P2 = &s
		} else {
			r.P1 = &s
		}
	}
	rows := make([]Row, 0, len(byRow))
	for _, r := range byRow {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}

// Dedupe keeps one slot per identity triple, preferring the highest ID, and
// returns the survivors in canonical order. Overlapping poll and broadcast
// merges can briefly leave two IDs claiming the same identity.
func Dedupe(slots []Slot) []Slot {
	best := make(map[Key]Slot, len(slots))
	for _, s := range slots {
		if cur, ok := best[s.Key()]; !ok || s.ID > cur.ID {
			best[s.Key()] = s
		}
	}
	out := make([]Slot, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	SortSlots(out)
	return out
}
