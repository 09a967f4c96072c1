package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"

	"github.com/arcadelab/scorekeep/internal/adapters/cache"
	"github.com/arcadelab/scorekeep/internal/adapters/http/api"
	"github.com/arcadelab/scorekeep/internal/adapters/rebuild"
	"github.com/arcadelab/scorekeep/internal/adapters/store"
	app "github.com/arcadelab/scorekeep/internal/app"
	"github.com/arcadelab/scorekeep/internal/config"
	"github.com/arcadelab/scorekeep/internal/identity"
	"github.com/arcadelab/scorekeep/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection; the engine serves its own
	// custom registry on /healthz.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to open score store: " + err.Error() + "\n")
		return
	}
	defer closeStore()
	log.Info(ctx, "score store ready", logger.String("driver", cfg.StoreDriver))

	lbCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to open leaderboard cache: " + err.Error() + "\n")
		return
	}
	defer closeCache()
	log.Info(ctx, "leaderboard cache ready", logger.String("backend", cfg.CacheBackend))

	rebuilder := rebuild.New(st, lbCache,
		rebuild.WithWorkerCount(cfg.RebuildWorkers),
		rebuild.WithQueueSize(cfg.RebuildQueueSize),
		rebuild.WithLogger(logger.Named("rebuild")),
	)

	svc := app.New(st, lbCache,
		app.WithLogger(log),
		app.WithResolver(identity.NewStatic(nil)),
		app.WithRebuilder(rebuilder),
		app.WithGameModes(cfg.GameModes),
		app.WithPageSizes(cfg.DefaultPageSize, cfg.MaxPageSize),
		app.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// openStore builds the configured durable store and its closer.
func openStore(ctx context.Context, cfg *config.Config) (*store.BunStore, func(), error) {
	var db *bun.DB
	switch cfg.StoreDriver {
	case config.StorePostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.StoreDSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open("sqlite", cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	st := store.NewBunStore(db)
	if err := st.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return st, func() { _ = db.Close() }, nil
}

// openCache builds the configured leaderboard cache and its closer.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.CacheBackend == config.CacheRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return cache.NewRedisCache(client), func() { _ = client.Close() }, nil
	}
	return cache.NewTreapCache(), func() {}, nil
}
