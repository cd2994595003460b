package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/engine"
)

// Server routes HTTP requests to a Store.
type Server struct {
	store   engine.Store
	channel broadcast.Channel
	limiter *Limiter
	logger  *slog.Logger
	router  *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithChannel mounts a WebSocket relay for ch at /ws.
func WithChannel(ch broadcast.Channel) Option {
	return func(s *Server) {
		s.channel = ch
	}
}

// WithLimiter enables per-IP rate limiting.
func WithLimiter(l *Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer builds the router over store.
func NewServer(store engine.Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Methods(http.MethodGet).Path("/queue").HandlerFunc(s.listSlots)
	r.Methods(http.MethodPost).Path("/queue").HandlerFunc(s.initialize)
	r.Methods(http.MethodGet).Path("/queue/{id:[0-9]+}").HandlerFunc(s.getSlot)
	r.Methods(http.MethodPatch).Path("/queue/{id:[0-9]+}").HandlerFunc(s.updateSlot)
	r.Methods(http.MethodDelete).Path("/queue/{id:[0-9]+}").HandlerFunc(s.clearSlot)
	r.Methods(http.MethodGet).Path("/history").HandlerFunc(s.listHistory)
	if s.channel != nil {
		r.Methods(http.MethodGet).Path("/ws").Handler(broadcast.NewRelay(s.channel, s.logger))
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "url", r.URL, "duration", m.Duration, "status", m.Code)
	})
}

type initializeRequest struct {
	Action string `json:"action"`
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.store.ListSlots(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slots))
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Action != "initialize" {
		writeError(w, http.StatusBadRequest, "unknown action "+strconv.Quote(req.Action))
		return
	}
	slots, err := s.store.InitializeGrid(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slots))
}

func (s *Server) getSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}
	slot, err := s.store.GetSlot(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) updateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}
	var patch board.SlotPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slot, err := s.store.UpdateSlot(r.Context(), id, patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) clearSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := slotID(w, r)
	if !ok {
		return
	}
	slot, err := s.store.ClearSlotText(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := board.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.store.ListHistory(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if entries == nil {
		entries = []board.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if board.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("store request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func slotID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return 0, false
	}
	return id, true
}

func nonNil(slots []board.Slot) []board.Slot {
	if slots == nil {
		return []board.Slot{}
	}
	return slots
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
