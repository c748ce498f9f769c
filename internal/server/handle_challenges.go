package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/crzliang/gzbot/internal/gzctf"
)

type ChallengeItem struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Category     int    `json:"category"`
	CategoryName string `json:"categoryName"`
	Score        int    `json:"score"`
}

type ChallengesResponse struct {
	Game       string          `json:"game"`
	Challenges []ChallengeItem `json:"challenges"`
}

func handleChallenges(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, ok := resolveGame(w, r, logger, deps)
		if !ok {
			return
		}

		list, err := deps.Catalog.ListChallenges(r.Context(), deps.GameID)
		if err != nil {
			logger.Error("listing challenges", "game_id", deps.GameID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := ChallengesResponse{Game: title, Challenges: make([]ChallengeItem, 0, len(list))}
		for _, c := range list {
			resp.Challenges = append(resp.Challenges, ChallengeItem{
				ID:           c.ID,
				Title:        c.Title,
				Category:     c.Category,
				CategoryName: c.CategoryName(),
				Score:        c.Score,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// resolveGame writes the error response itself when ok is false.
func resolveGame(w http.ResponseWriter, r *http.Request, logger *slog.Logger, deps Deps) (title string, ok bool) {
	title, err := deps.Catalog.GameTitle(r.Context(), deps.GameID)
	if errors.Is(err, gzctf.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return "", false
	}
	if err != nil {
		logger.Error("loading game title", "game_id", deps.GameID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "", false
	}
	return title, true
}
