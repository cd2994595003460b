package board

import (
	"fmt"
	"time"
)

// Grid dimensions.
const (
	Rows      = 12
	SlotCount = Rows * 4
)

// Side names one of the two cabinets.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Sides lists both cabinets in canonical order.
var Sides = []Side{Left, Right}

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Left, Right:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid side %q: must be %q or %q", s, Left, Right)
}

func (s Side) order() int {
	if s == Right {
		return 1
	}
	return 0
}

// Position names one of the two player slots within a cabinet row.
type Position string

const (
	P1 Position = "P1"
	P2 Position = "P2"
)

// Positions lists both player positions in canonical order.
var Positions = []Position{P1, P2}

func (p Position) order() int {
	if p == P2 {
		return 1
	}
	return 0
}

// ValidRow reports whether row is inside the grid.
func ValidRow(row int) bool {
	return row >= 0 && row < Rows
}

// Key is the logical identity of a slot.
type Key struct {
	RowIndex int
	Side     Side
	Position Position
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.RowIndex, k.Side, k.Position)
}

// Less orders keys by (row, side, position).
func (k Key) Less(o Key) bool {
	if k.RowIndex != o.RowIndex {
		return k.RowIndex < o.RowIndex
	}
	if k.Side != o.Side {
		return k.Side.order() < o.Side.order()
	}
	return k.Position.order() < o.Position.order()
}

// Slot is one cell of the grid.
type Slot struct {
	ID        int64     `json:"id"`
	RowIndex  int       `json:"rowIndex"`
	Side      Side      `json:"side"`
	Position  Position  `json:"position"`
	Text      string    `json:"text"`
	Checked   bool      `json:"checked"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the slot's current logical identity.
func (s Slot) Key() Key {
	return Key{RowIndex: s.RowIndex, Side: s.Side, Position: s.Position}
}

// SameContent compares every observable field except ID and UpdatedAt.
// Timestamps are ignored so that replayed snapshots compare equal.
func (s Slot) SameContent(o Slot) bool {
	return s.Text == o.Text &&
		s.Checked == o.Checked &&
		s.RowIndex == o.RowIndex &&
		s.Side == o.Side &&
		s.Position == o.Position
}

// Populated reports whether the slot carries any user state.
func (s Slot) Populated() bool {
	return s.Text != "" || s.Checked
}

// SlotPatch is a partial update. A nil field is left unchanged.
type SlotPatch struct {
	Text     *string `json:"text,omitempty"`
	Checked  *bool   `json:"checked,omitempty"`
	RowIndex *int    `json:"rowIndex,omitempty"`
}

// TextPatch returns a patch that sets only the text.
func TextPatch(text string) SlotPatch {
	return SlotPatch{Text: &text}
}

// CheckedPatch returns a patch that sets only the checked flag.
func CheckedPatch(checked bool) SlotPatch {
	return SlotPatch{Checked: &checked}
}

// IsEmpty reports whether the patch changes nothing.
func (p SlotPatch) IsEmpty() bool {
	return p.Text == nil && p.Checked == nil && p.RowIndex == nil
}

// Validate checks field ranges.
func (p SlotPatch) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("patch has no fields")
	}
	if p.RowIndex != nil && !ValidRow(*p.RowIndex) {
		return fmt.Errorf("rowIndex %d out of range [0,%d)", *p.RowIndex, Rows)
	}
	return nil
}

// Apply returns s with the patch fields applied.
func (p SlotPatch) Apply(s Slot) Slot {
	if p.Text != nil {
		s.Text = *p.Text
	}
	if p.Checked != nil {
		s.Checked = *p.Checked
	}
	if p.RowIndex != nil {
		s.RowIndex = *p.RowIndex
	}
	return s
}

// Diff returns the patch that turns from into to. Only text, checked and
// rowIndex are considered.
func Diff(from, to Slot) SlotPatch {
	var p SlotPatch
	if from.Text != to.Text {
		text := to.Text
		p.Text = &text
	}
	if from.Checked != to.Checked {
		checked := to.Checked
		p.Checked = &checked
	}
	if from.RowIndex != to.RowIndex {
		row := to.RowIndex
		p.RowIndex = &row
	}
	return p
}

func (p SlotPatch) String() string {
	out := "{"
	sep := ""
	if p.Text != nil {
		out += fmt.Sprintf("text=%q", *p.Text)
		sep = " "
	}
	if p.Checked != nil {
		out += fmt.Sprintf("%schecked=%t", sep, *p.Checked)
		sep = " "
	}
	if p.RowIndex != nil {
		out += fmt.Sprintf("%srowIndex=%d", sep, *p.RowIndex)
	}
	return out + "}"
}
