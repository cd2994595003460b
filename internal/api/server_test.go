package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/testutil"
)

func newTestServer(t *testing.T, st *testutil.FakeStore, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	srv := httptest.NewServer(NewServer(st, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorMessage(t *testing.T, data []byte) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(data, &body))
	return body["error"]
}

func TestListSlots(t *testing.T) {
	srv := newTestServer(t, testutil.NewGridStore())

	resp, data := do(t, http.MethodGet, srv.URL+"/queue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var slots []board.Slot
	require.NoError(t, json.Unmarshal(data, &slots))
	assert.Len(t, slots, board.SlotCount)
}

func TestListSlots_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, testutil.NewFakeStore())

	_, data := do(t, http.MethodGet, srv.URL+"/queue", "")
	assert.JSONEq(t, "[]", string(data))
}

func TestInitialize(t *testing.T) {
	st := testutil.NewFakeStore()
	srv := newTestServer(t, st)

	resp, data := do(t, http.MethodPost, srv.URL+"/queue", `{"action":"initialize"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slots []board.Slot
	require.NoError(t, json.Unmarshal(data, &slots))
	assert.Len(t, slots, board.SlotCount)

	resp, data = do(t, http.MethodPost, srv.URL+"/queue", `{"action":"reset"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorMessage(t, data), "reset")
}

func TestGetSlot(t *testing.T) {
	srv := newTestServer(t, testutil.NewGridStore())

	resp, data := do(t, http.MethodGet, srv.URL+"/queue/7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slot board.Slot
	require.NoError(t, json.Unmarshal(data, &slot))
	assert.Equal(t, int64(7), slot.ID)
	assert.Equal(t, board.Right, slot.Side)

	resp, data = do(t, http.MethodGet, srv.URL+"/queue/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, errorMessage(t, data), "not found")

	resp, _ = do(t, http.MethodGet, srv.URL+"/queue/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "non-numeric ids do not match the route")
}

func TestUpdateSlot(t *testing.T) {
	st := testutil.NewGridStore()
	srv := newTestServer(t, st)

	resp, data := do(t, http.MethodPatch, srv.URL+"/queue/7", `{"text":"Ana","checked":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var slot board.Slot
	require.NoError(t, json.Unmarshal(data, &slot))
	assert.Equal(t, "Ana", slot.Text)
	assert.True(t, slot.Checked)

	want := board.SlotPatch{Text: ptr("Ana"), Checked: ptr(true)}
	require.Len(t, st.CallsOf(testutil.OpUpdate), 1)
	assert.Equal(t, want.String(), st.CallsOf(testutil.OpUpdate)[0].Patch.String())
}

func TestUpdateSlot_Validation(t *testing.T) {
	st := testutil.NewGridStore()
	srv := newTestServer(t, st)

	for name, body := range map[string]string{
		"empty patch":   `{}`,
		"row too large": `{"rowIndex":12}`,
		"unknown field": `{"txt":"x"}`,
		"not json":      `text=x`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, data := do(t, http.MethodPatch, srv.URL+"/queue/7", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, errorMessage(t, data))
		})
	}
	assert.Empty(t, st.CallsOf(testutil.OpUpdate))
}

func TestClearSlot(t *testing.T) {
	st := testutil.NewGridStore()
	st.Set(7, board.TextPatch("Ana"))
	srv := newTestServer(t, st)

	resp, data := do(t, http.MethodDelete, srv.URL+"/queue/7", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slot board.Slot
	require.NoError(t, json.Unmarshal(data, &slot))
	assert.Equal(t, "", slot.Text)
}

func TestListHistory(t *testing.T) {
	st := testutil.NewGridStore()
	srv := newTestServer(t, st)

	do(t, http.MethodPatch, srv.URL+"/queue/1", `{"text":"a"}`)
	do(t, http.MethodPatch, srv.URL+"/queue/1", `{"checked":true}`)

	resp, data := do(t, http.MethodGet, srv.URL+"/history?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []board.HistoryEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, board.ActionChecked, entries[0].Action)

	resp, _ = do(t, http.MethodGet, srv.URL+"/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStoreFailureIs500(t *testing.T) {
	st := testutil.NewGridStore()
	st.Fail(testutil.OpList, assert.AnError)
	srv := newTestServer(t, st)

	resp, data := do(t, http.MethodGet, srv.URL+"/queue", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, errorMessage(t, data), assert.AnError.Error())
}

func TestRateLimit(t *testing.T) {
	limiter := NewLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	srv := newTestServer(t, testutil.NewGridStore(), WithLimiter(limiter))

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodGet, srv.URL+"/queue", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, data := do(t, http.MethodGet, srv.URL+"/queue", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", errorMessage(t, data))

	now = now.Add(time.Second)
	resp, _ = do(t, http.MethodGet, srv.URL+"/queue", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLimiter_PerClient(t *testing.T) {
	limiter := NewLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, wait := limiter.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = limiter.Allow("10.0.0.2")
	assert.True(t, ok, "buckets are per IP")
}

func TestRelayOnlyWithChannel(t *testing.T) {
	srv := newTestServer(t, testutil.NewGridStore())
	resp, _ := do(t, http.MethodGet, srv.URL+"/ws", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func ptr[T any](v T) *T { return &v }
