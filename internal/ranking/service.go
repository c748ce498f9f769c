package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crzliang/gzbot/internal/gzctf"
)

// Source provides the facts the leaderboard is computed from.
type Source interface {
	AcceptedSolves(ctx context.Context, gameID int) ([]gzctf.Solve, error)
	TeamMembers(ctx context.Context, gameID int) (map[int][]string, error)
}

// Cache stores computed leaderboards for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]Entry, bool, error)
	Set(ctx context.Context, key string, entries []Entry) error
}

// loadTimeout bounds a shared load, which outlives the caller that started it.
const loadTimeout = 15 * time.Second

// Service answers leaderboard queries. It holds no per-request state and is
// safe for concurrent use; identical concurrent queries share one load.
type Service struct {
	src    Source
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService returns a Service. cache may be nil.
func NewService(src Source, cache Cache, logger *slog.Logger) *Service {
	return &Service{src: src, cache: cache, logger: logger}
}

// Rankings returns the leaderboard of gameID, optionally restricted to teams
// with a member whose identifier starts with prefix.
func (s *Service) Rankings(ctx context.Context, gameID int, prefix string) ([]Entry, error) {
	key := fmt.Sprintf("%d:%s", gameID, prefix)

	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("ranking cache read failed", "key", key, "error", err)
		} else if ok {
			return entries, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.compute(ctx, gameID, prefix)
	})
	if err != nil {
		return nil, err
	}
	entries := v.([]Entry)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries); err != nil {
			s.logger.Warn("ranking cache write failed", "key", key, "error", err)
		}
	}
	return entries, nil
}

func (s *Service) compute(ctx context.Context, gameID int, prefix string) ([]Entry, error) {
	solves, err := s.src.AcceptedSolves(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading solves: %w", err)
	}
	members, err := s.src.TeamMembers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading team members: %w", err)
	}
	return Compute(solves, members, Options{MemberPrefix: prefix, WithMembers: true}), nil
}
