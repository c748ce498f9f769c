package server

import (
	"net/http"
)

// requireGame answers 503 when there is no competition store or game to
// serve from.
func requireGame(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !deps.gameConfigured() {
				writeError(w, http.StatusServiceUnavailable, "POSTGRES_DSN not configured")
				return
			}
			if deps.GameID == 0 {
				writeError(w, http.StatusServiceUnavailable, "TARGET_GAME_ID not set")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireJournal(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deps.Journal == nil {
				writeError(w, http.StatusServiceUnavailable, "JOURNAL_PATH not configured")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
