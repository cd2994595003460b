package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/queueboard/internal/board"
)

const slotColumns = `id, row_index, side, position, text, checked, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ListSlots returns every slot ordered by row_index, side, position, id.
//
// Returns an empty slice (not nil) if the grid has not been initialized.
func (s *Store) ListSlots(ctx context.Context) ([]board.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		ORDER BY row_index ASC, side ASC, position ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	slots := []board.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// GetSlot retrieves a single slot by ID.
// Returns board.ErrNotFound if absent.
func (s *Store) GetSlot(ctx context.Context, id int64) (board.Slot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, board.ErrNotFound)
	}
	if err != nil {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, err)
	}
	return slot, nil
}

// ListHistory returns the most recent history entries, newest first.
// A non-positive limit means board.DefaultHistoryLimit.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]board.HistoryEntry, error) {
	if limit <= 0 {
		limit = board.DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, row_index, side, position, action, old_value, new_value, created_at
		FROM history_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []board.HistoryEntry{}
	for rows.Next() {
		var e board.HistoryEntry
		var side, position, action, createdAt string
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&e.ID, &e.RowIndex, &side, &position, &action, &oldValue, &newValue, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Side = board.Side(side)
		e.Position = board.Position(position)
		e.Action = board.Action(action)
		e.OldValue = stringPtr(oldValue)
		e.NewValue = stringPtr(newValue)
		if e.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}

// scanSlot scans one row selected with slotColumns.
func scanSlot(r rowScanner) (board.Slot, error) {
	var slot board.Slot
	var side, position, updatedAt string

	if err := r.Scan(&slot.ID, &slot.RowIndex, &side, &position, &slot.Text, &slot.Checked, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return board.Slot{}, err
		}
		return board.Slot{}, fmt.Errorf("scan slot: %w", err)
	}

	slot.Side = board.Side(side)
	slot.Position = board.Position(position)

	t, err := parseTime(updatedAt)
	if err != nil {
		return board.Slot{}, fmt.Errorf("scan slot %d: %w", slot.ID, err)
	}
	slot.UpdatedAt = t

	return slot, nil
}
