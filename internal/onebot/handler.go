package onebot

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
)

const readLimit = 4 << 20

// Handler accepts reverse WebSocket connections from OneBot clients.
type Handler struct {
	hub    *Hub
	events EventHandler
	token  string
	logger *slog.Logger
}

// NewHandler returns a Handler. An empty token accepts every client.
func NewHandler(hub *Hub, events EventHandler, token string, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, events: events, token: token, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	selfID, err := strconv.ParseInt(r.Header.Get("X-Self-ID"), 10, 64)
	if err != nil || selfID <= 0 {
		http.Error(w, "missing or invalid X-Self-ID", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	s := newSession(selfID, conn, h.logger)
	if old := h.hub.Add(s); old != nil {
		old.conn.Close(websocket.StatusPolicyViolation, "replaced by a new connection")
	}
	defer h.hub.Remove(s)

	h.logger.Info("onebot client connected", "self_id", selfID, "role", r.Header.Get("X-Client-Role"))
	s.serve(r.Context(), h.events)
	h.logger.Info("onebot client disconnected", "self_id", selfID)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got := r.URL.Query().Get("access_token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		_, got, _ = strings.Cut(auth, " ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
