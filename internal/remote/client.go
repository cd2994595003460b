// Package remote implements the board Store over the HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/queueboard/internal/board"
)

// DefaultTimeout bounds each request when the caller's context has no
// earlier deadline.
const DefaultTimeout = 10 * time.Second

// Client talks to a queueboard server.
//
// Thread-safety: safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WebSocketURL returns the relay endpoint for this server.
func (c *Client) WebSocketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String()
}

func (c *Client) ListSlots(ctx context.Context) ([]board.Slot, error) {
	var slots []board.Slot
	if err := c.doArray(ctx, http.MethodGet, "/queue", nil, &slots); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (c *Client) GetSlot(ctx context.Context, id int64) (board.Slot, error) {
	var slot board.Slot
	if err := c.do(ctx, http.MethodGet, slotPath(id), nil, &slot); err != nil {
		return board.Slot{}, fmt.Errorf("get slot %d: %w", id, err)
	}
	return slot, nil
}

func (c *Client) UpdateSlot(ctx context.Context, id int64, patch board.SlotPatch) (board.Slot, error) {
	var slot board.Slot
	if err := c.do(ctx, http.MethodPatch, slotPath(id), patch, &slot); err != nil {
		return board.Slot{}, fmt.Errorf("update slot %d: %w", id, err)
	}
	return slot, nil
}

func (c *Client) ClearSlotText(ctx context.Context, id int64) (board.Slot, error) {
	var slot board.Slot
	if err := c.do(ctx, http.MethodDelete, slotPath(id), nil, &slot); err != nil {
		return board.Slot{}, fmt.Errorf("clear slot %d: %w", id, err)
	}
	return slot, nil
}

func (c *Client) InitializeGrid(ctx context.Context) ([]board.Slot, error) {
	var slots []board.Slot
	body := map[string]string{"action": "initialize"}
	if err := c.doArray(ctx, http.MethodPost, "/queue", body, &slots); err != nil {
		return nil, fmt.Errorf("initialize grid: %w", err)
	}
	return slots, nil
}

func (c *Client) ListHistory(ctx context.Context, limit int) ([]board.HistoryEntry, error) {
	if limit <= 0 {
		limit = board.DefaultHistoryLimit
	}
	var entries []board.HistoryEntry
	path := "/history?limit=" + strconv.Itoa(limit)
	if err := c.doArray(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

func slotPath(id int64) string {
	return "/queue/" + strconv.FormatInt(id, 10)
}

// doArray is do for endpoints that must answer with a JSON array.
func (c *Client) doArray(ctx context.Context, method, path string, body, out any) error {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, body, &raw); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("expected JSON array: %w", board.ErrMalformedResponse)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode array: %w", board.ErrMalformedResponse)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return responseError(resp, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", board.ErrMalformedResponse)
	}
	return nil
}

// responseError maps a non-2xx response onto the board error taxonomy.
func responseError(resp *http.Response, data []byte) error {
	msg := strings.TrimSpace(string(data))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("server: %w", board.ErrNotFound)
	case http.StatusTooManyRequests:
		return &board.RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
