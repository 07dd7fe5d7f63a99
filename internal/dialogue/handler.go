package dialogue

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/session"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	svc     Service
	log     *zap.Logger
	origins []string

	// open websocket connections, closed and awaited by Shutdown
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHandler serves the session API. origins limits websocket upgrades the
// same way CORS limits plain requests; "*" allows any origin.
func NewHandler(svc Service, logger *zap.Logger, origins []string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:     svc,
		log:     logger.Named("http"),
		origins: origins,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// CreateSession: POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Open(r.Context())
	if err != nil {
		h.log.Error("create session failed", zap.Error(err))
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID})
}

// GetSession: GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.svc.Session(r.Context(), id)
	if err != nil {
		h.log.Error("load session failed", zap.String("session", id), zap.Error(err))
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}
	if s.Logs == nil {
		s.Logs = []session.Log{}
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleMessage: POST /sessions/{id}/message. Always answers 200 with a
// reply; malformed bodies get the bad request fallback.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	var req MessageRequest
	if err == nil {
		req, err = ParseMessageRequest(body)
	}
	if err != nil {
		h.log.Warn("bad message body", zap.String("session", id), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, h.svc.Reply(r.Context(), id, req))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (h *Handler) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
