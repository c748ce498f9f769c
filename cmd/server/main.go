package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/crzliang/gzbot/internal/broadcast"
	"github.com/crzliang/gzbot/internal/command"
	"github.com/crzliang/gzbot/internal/config"
	"github.com/crzliang/gzbot/internal/database"
	"github.com/crzliang/gzbot/internal/gzctf"
	"github.com/crzliang/gzbot/internal/handler/health"
	"github.com/crzliang/gzbot/internal/journal"
	"github.com/crzliang/gzbot/internal/migrations"
	"github.com/crzliang/gzbot/internal/notice"
	"github.com/crzliang/gzbot/internal/onebot"
	"github.com/crzliang/gzbot/internal/ranking"
	"github.com/crzliang/gzbot/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	loc := cfg.Location()
	checks := map[string]health.Checker{}

	// --- Postgres (GZCTF, read-only) ---
	var store *gzctf.GormStore
	if cfg.PostgresDSN != "" {
		pg, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		if sqlDB, err := pg.DB(); err == nil {
			defer sqlDB.Close()
		}
		store = gzctf.NewGormStore(pg)
		checks["postgres"] = health.Gorm(pg)
		logger.Info("connected to postgres", "game_id", cfg.TargetGameID)
	} else {
		logger.Warn("POSTGRES_DSN not set, commands and broadcasts are unavailable")
	}

	// --- Redis (optional ranking cache) ---
	var cache ranking.Cache
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		cache = ranking.NewRedisCache(rdb, cfg.RankingCacheTTL)
		checks["redis"] = health.Redis(rdb)
		logger.Info("connected to redis")
	}

	// --- Delivery journal (optional) ---
	var jr *journal.Journal
	if cfg.JournalPath != "" {
		db, err := database.Open(ctx, cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer db.Close()

		if err := migrations.Run(db); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		jr = journal.New(db, journal.DefaultKeep)
		checks["journal"] = health.SQL(db)
		logger.Info("opened delivery journal", "path", cfg.JournalPath)
	}

	// --- Broadcast engine ---
	hub := onebot.NewHub()
	dispatcher := broadcast.NewDispatcher(hub, logger, cfg.SendTimeout, cfg.DeliveryConcurrency)
	state := broadcast.NewState(cfg.MinLookback, cfg.DedupCeiling, cfg.DedupKeep)

	deps := server.Deps{GameID: cfg.TargetGameID, Checks: checks}
	pollOpts := broadcast.Options{
		GameID:   cfg.TargetGameID,
		Groups:   cfg.AllowedGroupIDs,
		Interval: cfg.PollInterval,
		Timeout:  cfg.CycleTimeout,
		Sessions: hub,
	}
	cmdOpts := command.Options{
		GameID:        cfg.TargetGameID,
		AllowedGroups: cfg.AllowedGroupIDs,
		Admins:        cfg.AdminUserIDs,
		Location:      loc,
		Hub:           hub,
	}

	// Interfaces stay nil, not typed-nil, when a backend is absent.
	var (
		source      broadcast.NoticeSource
		renderer    broadcast.Renderer
		catalog     command.Catalog
		leaderboard command.Leaderboard
	)
	if store != nil {
		formatter := notice.NewFormatter(store, cfg.TargetGameID, loc)
		rankings := ranking.NewService(store, cache, logger)
		source, renderer = store, formatter
		catalog, leaderboard = store, rankings
		deps.Catalog, deps.Leaderboard, deps.Renderer = store, rankings, formatter
	}
	feed := server.NewBroker()
	deps.Feed = feed
	if jr != nil {
		pollOpts.Recorder = broadcast.Recorders{jr, feed}
		cmdOpts.Journal = jr
		deps.Journal = jr
	} else {
		pollOpts.Recorder = feed
	}

	poller := broadcast.NewPoller(state, source, renderer, dispatcher, logger, pollOpts)
	if len(cfg.AllowedGroupIDs) == 0 {
		logger.Warn("ALLOWED_GROUP_IDS empty, broadcasts have no target groups")
	}
	if cfg.BroadcastEnabled {
		if poller.Configured() {
			poller.SetEnabled(true)
		} else {
			logger.Warn("BROADCAST_ENABLED ignored, POSTGRES_DSN or TARGET_GAME_ID missing")
		}
	}

	commands := command.NewHandler(catalog, leaderboard, poller, logger, cmdOpts)
	deps.Broadcast = poller
	deps.OneBot = onebot.NewHandler(hub, commands, cfg.OneBotAccessToken, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, deps)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
