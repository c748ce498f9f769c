package server

import (
	"context"
	"net/http"

	"github.com/crzliang/gzbot/internal/broadcast"
	"github.com/crzliang/gzbot/internal/gzctf"
	"github.com/crzliang/gzbot/internal/handler/health"
	"github.com/crzliang/gzbot/internal/journal"
	"github.com/crzliang/gzbot/internal/notice"
	"github.com/crzliang/gzbot/internal/ranking"
)

type Catalog interface {
	GameTitle(ctx context.Context, gameID int) (string, error)
	ListChallenges(ctx context.Context, gameID int) ([]gzctf.Challenge, error)
}

type Leaderboard interface {
	Rankings(ctx context.Context, gameID int, prefix string) ([]ranking.Entry, error)
}

type Renderer interface {
	Format(ctx context.Context, ev notice.Event) (string, error)
	Fallback(ev notice.Event) string
}

type StatusSource interface {
	Status() broadcast.Status
}

type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Deps are the collaborators behind the HTTP surface. Catalog, Leaderboard
// and Renderer are nil when no competition store is configured. Journal is
// nil when the delivery journal is disabled.
type Deps struct {
	GameID      int
	Catalog     Catalog
	Leaderboard Leaderboard
	Renderer    Renderer
	Broadcast   StatusSource
	Journal     Journal
	Feed        *Broker
	OneBot      http.Handler
	Checks      map[string]health.Checker
}

func (d Deps) gameConfigured() bool {
	return d.Catalog != nil && d.Leaderboard != nil && d.Renderer != nil
}
