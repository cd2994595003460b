package board

import "time"

// Action is the kind of change a history entry records.
type Action string

const (
	ActionChecked     Action = "checked"
	ActionUnchecked   Action = "unchecked"
	ActionTextChanged Action = "text_changed"
)

// DefaultHistoryLimit bounds the history view and the store's retention.
const DefaultHistoryLimit = 100

// HistoryEntry is an immutable audit record of one slot change.
// RowIndex, Side and Position are a snapshot taken when the change was written.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	RowIndex  int       `json:"rowIndex"`
	Side      Side      `json:"side"`
	Position  Position  `json:"position"`
	Action    Action    `json:"action"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryFor returns the entries produced by changing before into after.
// The row snapshot is taken from after.
func HistoryFor(before, after Slot, at time.Time) []HistoryEntry {
	var entries []HistoryEntry
	base := HistoryEntry{
		RowIndex:  after.RowIndex,
		Side:      after.Side,
		Position:  after.Position,
		Timestamp: at,
	}
	if before.Checked != after.Checked {
		e := base
		e.Action = ActionUnchecked
		if after.Checked {
			e.Action = ActionChecked
		}
		e.OldValue = strPtr(boolString(before.Checked))
		e.NewValue = strPtr(boolString(after.Checked))
		entries = append(entries, e)
	}
	if before.Text != after.Text {
		e := base
		e.Action = ActionTextChanged
		e.OldValue = strPtr(before.Text)
		e.NewValue = strPtr(after.Text)
		entries = append(entries, e)
	}
	return entries
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func strPtr(s string) *string { return &s }
