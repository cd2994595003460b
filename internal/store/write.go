package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/queueboard/internal/board"
)

// UpdateSlot applies a partial update to one slot and returns the result.
// Omitted fields are unchanged. updated_at is always rewritten.
//
// A history row is appended for each of text and checked that actually
// changed value, in the same transaction. Returns board.ErrNotFound if the
// slot does not exist.
func (s *Store) UpdateSlot(ctx context.Context, id int64, patch board.SlotPatch) (board.Slot, error) {
	if err := patch.Validate(); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: begin tx: %w", id, err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := scanSlot(tx.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, board.ErrNotFound)
	}
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	now := s.now()
	after := patch.Apply(before)
	after.UpdatedAt = now.UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE slots
		SET text = ?, checked = ?, row_index = ?, updated_at = ?
		WHERE id = ?
	`,
		after.Text,
		after.Checked,
		after.RowIndex,
		formatTime(now),
		id,
	)
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	entries := board.HistoryFor(before, after, now)
	if err := s.appendHistory(ctx, tx, entries); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: commit: %w", id, err)
	}

	// Round-trip through the stored representation so callers see exactly
	// what a later read returns.
	after.UpdatedAt, _ = parseTime(formatTime(now))
	return after, nil
}

// ClearSlotText resets a slot's text to empty. It is a text reset, never a
// row deletion. The old text is recorded in history.
func (s *Store) ClearSlotText(ctx context.Context, id int64) (board.Slot, error) {
	slot, err := s.UpdateSlot(ctx, id, board.TextPatch(""))
	if err != nil {
		return board.Slot{}, fmt.Errorf("clear slot: %w", err)
	}
	return slot, nil
}

// InitializeGrid creates any of the 48 canonical slots that are missing and
// returns the full set. Safe to call concurrently from several clients: the
// IMMEDIATE transaction serializes writers, so each identity is inserted at
// most once.
func (s *Store) InitializeGrid(ctx context.Context) ([]board.Slot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize grid: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slots (row_index, side, position, text, checked, updated_at)
		SELECT ?, ?, ?, '', 0, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM slots WHERE row_index = ? AND side = ? AND position = ?
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("initialize grid: prepare: %w", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	for _, k := range board.CanonicalKeys() {
		side, pos := string(k.Side), string(k.Position)
		if _, err := stmt.ExecContext(ctx, k.RowIndex, side, pos, now, k.RowIndex, side, pos); err != nil {
			return nil, fmt.Errorf("initialize grid: insert %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("initialize grid: commit: %w", err)
	}

	return s.ListSlots(ctx)
}

// appendHistory inserts entries and prunes the log to the retention bound.
func (s *Store) appendHistory(ctx context.Context, tx *sql.Tx, entries []board.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history_log
			(row_index, side, position, action, old_value, new_value, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			e.RowIndex,
			string(e.Side),
			string(e.Position),
			string(e.Action),
			nullString(e.OldValue),
			nullString(e.NewValue),
			formatTime(e.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	if s.retention <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM history_log
		WHERE id NOT IN (SELECT id FROM history_log ORDER BY id DESC LIMIT ?)
	`, s.retention)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}
