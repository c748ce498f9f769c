package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/crzliang/gzbot/internal/journal"
)

const (
	defaultDeliveries = 20
	maxDeliveries     = 200
)

type DeliveriesResponse struct {
	Entries []journal.Entry `json:"entries"`
}

func handleBroadcastStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Broadcast.Status())
	}
}

func handleDeliveries(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultDeliveries
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxDeliveries)
		}

		entries, err := deps.Journal.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("reading delivery journal", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, DeliveriesResponse{Entries: entries})
	}
}
