package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
)

// run executes the CLI against db and returns stdout, stderr and the exit code.
func run(t *testing.T, db string, args ...string) (string, string, int) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute(context.Background(), append([]string{"--db", db}, args...), stdout, stderr)
	return stdout.String(), stderr.String(), code
}

func newBoard(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "board.db")
	out, stderr, code := run(t, db, "init")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "Board ready: 48 slots")
	return db
}

func decodeSlots(t *testing.T, out string) []board.Slot {
	t.Helper()
	var resp struct {
		Status string       `json:"status"`
		Data   []board.Slot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func slotByID(slots []board.Slot, id int64) (board.Slot, bool) {
	for _, s := range slots {
		if s.ID == id {
			return s, true
		}
	}
	return board.Slot{}, false
}

func TestInitIsIdempotent(t *testing.T) {
	db := newBoard(t)

	out, _, code := run(t, db, "--format", "json", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Len(t, decodeSlots(t, out), board.SlotCount)
}

func TestTextFoldsAccents(t *testing.T) {
	db := newBoard(t)

	out, stderr, code := run(t, db, "text", "7", "Zoë")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "slot 7 (right row 1 P1): \"Zoe\"\n", out)

	out, _, code = run(t, db, "--format", "json", "list")
	require.Equal(t, ExitSuccess, code)
	slot, ok := slotByID(decodeSlots(t, out), 7)
	require.True(t, ok)
	assert.Equal(t, "Zoe", slot.Text)
}

func TestCheckThenUncheckMovesRow(t *testing.T) {
	db := newBoard(t)
	_, _, code := run(t, db, "text", "7", "Ana")
	require.Equal(t, ExitSuccess, code)

	out, stderr, code := run(t, db, "check", "1", "right")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "  1 [ ] .")
	assert.Contains(t, out, "| [x] Ana")

	out, stderr, code = run(t, db, "--format", "json", "uncheck", "1", "right")
	require.Equal(t, ExitSuccess, code, stderr)
	slots := decodeSlots(t, out)
	for _, s := range slots {
		assert.Equal(t, board.Right, s.Side)
	}
	slot, ok := slotByID(slots, 7)
	require.True(t, ok)
	assert.Equal(t, 0, slot.RowIndex)
	assert.False(t, slot.Checked)
}

func TestUncheckUncheckedRowIsNoop(t *testing.T) {
	db := newBoard(t)

	_, stderr, code := run(t, db, "uncheck", "3", "left")
	assert.Equal(t, ExitSuccess, code, stderr)

	out, _, _ := run(t, db, "history")
	assert.Empty(t, out)
}

func TestClearAndHistory(t *testing.T) {
	db := newBoard(t)
	_, _, code := run(t, db, "text", "1", "Bo")
	require.Equal(t, ExitSuccess, code)

	out, stderr, code := run(t, db, "clear", "1")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "slot 1 (left row 0 P1): \"\"\n", out)

	out, _, code = run(t, db, "history", "-n", "1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `text_changed "Bo" -> ""`)
}

func TestClearRow(t *testing.T) {
	db := newBoard(t)
	run(t, db, "text", "1", "Bo")
	run(t, db, "text", "2", "Cy")

	out, stderr, code := run(t, db, "--format", "json", "clear-row", "0", "left")
	require.Equal(t, ExitSuccess, code, stderr)
	for _, id := range []int64{1, 2} {
		slot, ok := slotByID(decodeSlots(t, out), id)
		require.True(t, ok)
		assert.Empty(t, slot.Text)
	}
}

func TestCommandErrors(t *testing.T) {
	db := newBoard(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"bad slot id", []string{"text", "x", "Ana"}, ExitCommandError, `invalid slot id "x"`},
		{"row out of range", []string{"check", "12", "left"}, ExitCommandError, "must be 0-11"},
		{"bad side", []string{"check", "1", "middle"}, ExitCommandError, "invalid side"},
		{"bad format", []string{"--format", "xml", "list"}, ExitFailure, `invalid format "xml"`},
		{"missing args", []string{"clear"}, ExitFailure, "accepts 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := run(t, db, tt.args...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestJSONErrorOutput(t *testing.T) {
	db := newBoard(t)

	out, _, code := run(t, db, "--format", "json", "text", "999", "x")
	assert.Equal(t, ExitCommandError, code)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "slot not found")
}
