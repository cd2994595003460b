// Package pgstore is the PostgreSQL implementation of the board store.
//
// It honors the same contract as the SQLite store: no unique index on the
// identity triple, history written in the mutation's transaction, and a
// race-safe InitializeGrid. Concurrent initializers are serialized with a
// transaction-scoped advisory lock.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/queueboard/internal/board"
)

//go:embed schema.sql
var schemaSQL string

// initLockKey is the advisory lock key taken by InitializeGrid.
const initLockKey int64 = 0x71756575 // "queu"

const slotColumns = `id, row_index, side, position, text, checked, updated_at`

// Store is a PostgreSQL-backed board store.
type Store struct {
	pool      *pgxpool.Pool
	retention int
}

// Open connects to url, verifies the connection and applies the schema.
func Open(ctx context.Context, url string, retention int) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, retention: retention}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListSlots returns every slot ordered by row_index, side, position, id.
func (s *Store) ListSlots(ctx context.Context) ([]board.Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		ORDER BY row_index, side, position, id
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
func (s *Store) GetSlot(ctx context.Context, id int64) (board.Slot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, board.ErrNotFound)
	}
	if err != nil {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, err)
	}
	return slot, nil
}

// UpdateSlot applies a partial update and appends history for changed
// text or checked values.
func (s *Store) UpdateSlot(ctx context.Context, id int64, patch board.SlotPatch) (board.Slot, error) {
	if err := patch.Validate(); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: begin tx: %w", id, err)
	}
	defer tx.Rollback(ctx)

	before, err := scanSlot(tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, board.ErrNotFound)
	}
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	after := patch.Apply(before)
	err = tx.QueryRow(ctx, `
		UPDATE slots
		SET text = $1, checked = $2, row_index = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`, after.Text, after.Checked, after.RowIndex, id).Scan(&after.UpdatedAt)
	if err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}

	for _, e := range board.HistoryFor(before, after, after.UpdatedAt) {
		_, err := tx.Exec(ctx, `
			INSERT INTO history_log (row_index, side, position, action, old_value, new_value, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.RowIndex, string(e.Side), string(e.Position), string(e.Action), e.OldValue, e.NewValue, e.Timestamp)
		if err != nil {
			return board.Slot{}, fmt.Errorf("update slot %d: append history: %w", id, err)
		}
	}

	if s.retention > 0 {
		_, err := tx.Exec(ctx, `
			DELETE FROM history_log
			WHERE id NOT IN (SELECT id FROM history_log ORDER BY id DESC LIMIT $1)
		`, s.retention)
		if err != nil {
			return board.Slot{}, fmt.Errorf("update slot %d: prune history: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: commit: %w", id, err)
	}
	after.UpdatedAt = after.UpdatedAt.UTC()
	return after, nil
}

// ClearSlotText resets a slot's text to empty.
func (s *Store) ClearSlotText(ctx context.Context, id int64) (board.Slot, error) {
	slot, err := s.UpdateSlot(ctx, id, board.TextPatch(""))
	if err != nil {
		return board.Slot{}, fmt.Errorf("clear slot: %w", err)
	}
	return slot, nil
}

// InitializeGrid creates missing canonical slots and returns the full set.
func (s *Store) InitializeGrid(ctx context.Context) ([]board.Slot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize grid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, initLockKey); err != nil {
		return nil, fmt.Errorf("initialize grid: lock: %w", err)
	}

	batch := &pgx.Batch{}
	for _, k := range board.CanonicalKeys() {
		batch.Queue(`
			INSERT INTO slots (row_index, side, position)
			SELECT $1::int, $2::text, $3::text
			WHERE NOT EXISTS (
				SELECT 1 FROM slots WHERE row_index = $1::int AND side = $2::text AND position = $3::text
			)
		`, k.RowIndex, string(k.Side), string(k.Position))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("initialize grid: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("initialize grid: commit: %w", err)
	}
	return s.ListSlots(ctx)
}

// ListHistory returns the most recent entries, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]board.HistoryEntry, error) {
	if limit <= 0 {
		limit = board.DefaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, row_index, side, position, action, old_value, new_value, created_at
		FROM history_log
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []board.HistoryEntry{}
	for rows.Next() {
		var e board.HistoryEntry
		var side, position, action string
		var ts time.Time
		if err := rows.Scan(&e.ID, &e.RowIndex, &side, &position, &action, &e.OldValue, &e.NewValue, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Side = board.Side(side)
		e.Position = board.Position(position)
		e.Action = board.Action(action)
		e.Timestamp = ts.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func scanSlot(row pgx.Row) (board.Slot, error) {
	var slot board.Slot
	var side, position string
	if err := row.Scan(&slot.ID, &slot.RowIndex, &side, &position, &slot.Text, &slot.Checked, &slot.UpdatedAt); err != nil {
		return board.Slot{}, err
	}
	slot.Side = board.Side(side)
	slot.Position = board.Position(position)
	slot.UpdatedAt = slot.UpdatedAt.UTC()
	return slot, nil
}
