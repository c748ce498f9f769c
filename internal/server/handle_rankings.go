package server

import (
	"log/slog"
	"net/http"

	"github.com/crzliang/gzbot/internal/ranking"
)

type RankingsResponse struct {
	Game    string          `json:"game"`
	Prefix  string          `json:"prefix,omitempty"`
	Entries []ranking.Entry `json:"entries"`
}

func handleRankings(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, ok := resolveGame(w, r, logger, deps)
		if !ok {
			return
		}

		prefix := r.URL.Query().Get("prefix")
		entries, err := deps.Leaderboard.Rankings(r.Context(), deps.GameID, prefix)
		if err != nil {
			logger.Error("computing rankings", "game_id", deps.GameID, "prefix", prefix, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if entries == nil {
			entries = []ranking.Entry{}
		}

		writeJSON(w, http.StatusOK, RankingsResponse{Game: title, Prefix: prefix, Entries: entries})
	}
}
