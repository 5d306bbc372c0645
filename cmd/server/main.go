package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/tuttifrutti/internal/config"
	"github.com/playperu/tuttifrutti/internal/database"
	"github.com/playperu/tuttifrutti/internal/handler/health"
	"github.com/playperu/tuttifrutti/internal/migrations"
	"github.com/playperu/tuttifrutti/internal/room"
	"github.com/playperu/tuttifrutti/internal/server"
	"github.com/playperu/tuttifrutti/internal/stopgame"
	"github.com/playperu/tuttifrutti/internal/validation"
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

	checks := make(map[string]health.Checker)

	// --- Verdict cache ---
	cache, closeCache, err := openCache(ctx, cfg, logger, checks)
	if err != nil {
		return err
	}
	defer closeCache()

	// --- Redis ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = redisChecker{rdb}
		cache = validation.NewRedisCache(rdb, cache, cfg.RedisTTL, logger)
		logger.Info("connected to redis", "ttl", cfg.RedisTTL)
	}

	// --- Judge ---
	var judge validation.Judge = validation.NopJudge{}
	if cfg.JudgeURL != "" {
		j := validation.NewHTTPJudge(cfg.JudgeURL, cfg.JudgeAPIKey, cfg.JudgeTimeout)
		checks["judge"] = health.CheckerFunc(j.Ping)
		judge = j
		logger.Info("using external judge", "url", cfg.JudgeURL, "timeout", cfg.JudgeTimeout)
	} else {
		logger.Warn("JUDGE_URL not set, uncached words will not be validated")
	}

	validator := validation.NewValidator(cache, judge, logger,
		validation.WithFlexible(stopgame.Flexible),
		validation.WithLanguage(cfg.JudgeLanguage),
		validation.WithTimeout(cfg.JudgeTimeout),
	)

	// --- Rooms ---
	broker := server.NewBroker(logger)
	registry := room.NewRegistry(room.SystemClock, cfg.RoomIdleTTL, cfg.EmptyRoomGrace, logger)

	opts := room.DefaultOptions()
	opts.CountdownSeconds = cfg.CountdownSeconds
	opts.RoundDuration = cfg.RoundDuration
	opts.SettleBuffer = cfg.SettleBuffer
	opts.SettleTimeout = cfg.JudgeTimeout + cfg.SettleBuffer
	opts.CategoriesPerRound = cfg.CategoriesPerRound
	opts.DefaultRounds = cfg.DefaultRounds
	opts.MaxRounds = cfg.MaxRounds
	engine := room.NewEngine(registry, validator, broker, opts, logger)

	// --- HTTP Server ---
	srv := server.New(server.Options{
		Addr:      cfg.HTTPAddr,
		PublicURL: cfg.PublicURL,
		JWTSecret: cfg.JWTSecret,
		RateLimit: rate.Limit(cfg.WSRateLimit),
		RateBurst: cfg.WSRateBurst,
	}, logger, engine, broker, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return registry.Run(gctx, cfg.SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		err := srv.Shutdown(context.Background())
		engine.Wait()
		return err
	})

	return g.Wait()
}

// openCache picks the durable verdict store from the config and registers
// its health check.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, checks map[string]health.Checker) (validation.Cache, func(), error) {
	switch {
	case strings.HasPrefix(cfg.CacheDSN, "postgres://"), strings.HasPrefix(cfg.CacheDSN, "postgresql://"):
		pg, err := validation.NewPostgresCache(ctx, cfg.CacheDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		checks["postgres"] = health.CheckerFunc(pg.Ping)
		logger.Info("connected to postgres")
		return pg, pg.Close, nil

	case cfg.CacheDSN == "memory:":
		logger.Warn("verdicts are cached in memory only")
		return validation.NewMemoryCache(), func() {}, nil

	case cfg.CacheDSN != "":
		return nil, nil, fmt.Errorf("unsupported CACHE_DSN %q", cfg.CacheDSN)
	}

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	n, err := migrations.Run(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	checks["sqlite"] = dbChecker{db}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", n)
	return validation.NewSQLiteCache(db), func() { db.Close() }, nil
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

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
