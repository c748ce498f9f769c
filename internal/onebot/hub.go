package onebot

import (
	"slices"
	"sync"

	"github.com/crzliang/gzbot/internal/broadcast"
)

// Hub tracks the connected sessions, keyed by bot account id.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[int64]*Session)}
}

// Add registers s and returns the session it replaced, if any.
func (h *Hub) Add(s *Session) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.sessions[s.selfID]
	h.sessions[s.selfID] = s
	return old
}

// Remove unregisters s unless it was already replaced by a newer session.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.selfID] == s {
		delete(h.sessions, s.selfID)
	}
}

func (h *Hub) Get(selfID int64) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[selfID]
	return s, ok
}

// All returns the sessions ordered by account id.
func (h *Hub) All() []*Session {
	h.mu.RLock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		switch {
		case a.selfID < b.selfID:
			return -1
		case a.selfID > b.selfID:
			return 1
		}
		return 0
	})
	return out
}

// Sessions satisfies broadcast.SessionSource.
func (h *Hub) Sessions() []broadcast.Session {
	all := h.All()
	out := make([]broadcast.Session, len(all))
	for i, s := range all {
		out[i] = s
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
