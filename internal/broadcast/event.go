package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/queueboard/internal/board"
)

// DefaultChannel is the channel name used when none is configured.
const DefaultChannel = "queue-updates"

// Name is the event vocabulary.
type Name string

const (
	EntryUpdated Name = "entry-updated"
	SyncAll      Name = "sync-all"
)

// Event is the wire envelope for both event kinds.
type Event struct {
	Name   Name         `json:"event"`
	Origin string       `json:"origin,omitempty"`
	Slot   *board.Slot  `json:"slot,omitempty"`
	Slots  []board.Slot `json:"slots,omitempty"`
}

// NewEntryUpdated builds an entry-updated event.
func NewEntryUpdated(origin string, slot board.Slot) Event {
	return Event{Name: EntryUpdated, Origin: origin, Slot: &slot}
}

// NewSyncAll builds a sync-all event. The slice is copied.
func NewSyncAll(origin string, slots []board.Slot) Event {
	cp := make([]board.Slot, len(slots))
	copy(cp, slots)
	return Event{Name: SyncAll, Origin: origin, Slots: cp}
}

// Validate checks that the payload matches the event name.
func (e Event) Validate() error {
	switch e.Name {
	case EntryUpdated:
		if e.Slot == nil {
			return fmt.Errorf("%s: missing slot: %w", e.Name, board.ErrMalformedResponse)
		}
	case SyncAll:
		if e.Slots == nil {
			return fmt.Errorf("%s: missing slots: %w", e.Name, board.ErrMalformedResponse)
		}
	default:
		return fmt.Errorf("unknown event %q: %w", e.Name, board.ErrMalformedResponse)
	}
	return nil
}

// Encode serializes an event to JSON.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Name == SyncAll && len(e.Slots) == 0 {
		// Keep an explicit empty array on the wire; omitempty would drop it.
		type wire struct {
			Name   Name         `json:"event"`
			Origin string       `json:"origin,omitempty"`
			Slots  []board.Slot `json:"slots"`
		}
		return json.Marshal(wire{Name: e.Name, Origin: e.Origin, Slots: []board.Slot{}})
	}
	return json.Marshal(e)
}

// Decode parses and validates an event. A sync-all whose slots field is not
// an array is rejected as malformed.
func Decode(data []byte) (Event, error) {
	var raw struct {
		Name   Name            `json:"event"`
		Origin string          `json:"origin"`
		Slot   *board.Slot     `json:"slot"`
		Slots  json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("decode event: %w: %v", board.ErrMalformedResponse, err)
	}

	e := Event{Name: raw.Name, Origin: raw.Origin, Slot: raw.Slot}
	if raw.Name == SyncAll {
		trimmed := bytes.TrimSpace(raw.Slots)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return Event{}, fmt.Errorf("decode event: slots is not an array: %w", board.ErrMalformedResponse)
		}
		if err := json.Unmarshal(trimmed, &e.Slots); err != nil {
			return Event{}, fmt.Errorf("decode event: %w: %v", board.ErrMalformedResponse, err)
		}
	}

	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
