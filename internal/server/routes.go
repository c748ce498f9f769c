package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/crzliang/gzbot/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("gzbot API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())

	if deps.OneBot != nil {
		r.Handle("/onebot/v11/ws", deps.OneBot)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/broadcast", handleBroadcastStatus(deps))

		r.Group(func(r chi.Router) {
			r.Use(requireGame(deps))
			r.Get("/challenges", handleChallenges(logger, deps))
			r.Get("/rankings", handleRankings(logger, deps))
			r.Post("/notices/preview", handlePreview(logger, deps))
		})

		r.With(requireJournal(deps)).Get("/deliveries", handleDeliveries(logger, deps))
		if deps.Feed != nil {
			r.Get("/deliveries/stream", handleDeliveryStream(deps.Feed))
		}
	})
}
