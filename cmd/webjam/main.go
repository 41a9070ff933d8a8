// Command webjam serves the judging and ranking API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Webtech-MQP/webjam-sub000/infrastructure/cache"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/httpapi"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/middleware"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/notify"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/storage/memory"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/storage/postgres"
	"github.com/Webtech-MQP/webjam-sub000/internal/application"
	"github.com/Webtech-MQP/webjam-sub000/internal/observability"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to the YAML configuration file")
		fixturesPath = flag.String("seed", "", "Optional YAML fixtures to load before serving")
	)
	flag.Parse()

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *fixturesPath, logger); err != nil {
		logger.Error("webjam stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("webjam stopped")
}

// backend is a store that can also be seeded and health-checked.
type backend interface {
	application.SeedStore
	Ping(ctx context.Context) error
}

type memoryBackend struct{ *memory.Store }

func (memoryBackend) Ping(context.Context) error { return nil }

func openStore(ctx context.Context, cfg application.DatabaseConfig, logger *slog.Logger) (backend, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			AutoMigrate:     cfg.AutoMigrate,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "memory":
		logger.Warn("using the in-memory store; data is lost on exit")
		return memoryBackend{memory.New()}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openCache(ctx context.Context, cfg application.CacheConfig, logger *slog.Logger) (ports.CacheStore, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}, nil
	}
	rc, err := cache.NewRedisCache(cfg.RedisAddr, "webjam:")
	if err != nil {
		return nil, nil, err
	}
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return rc, func() { _ = rc.Close() }, nil
}

func run(ctx context.Context, cfg application.AppConfig, fixturesPath string, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	previewCache, closeCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	if fixturesPath != "" {
		fx, err := application.LoadFixtures(fixturesPath)
		if err != nil {
			return err
		}
		res, err := application.Seed(ctx, store, fx, logger)
		if err != nil {
			return err
		}
		logger.Info("fixtures loaded", "projects", len(res.Projects), "teams", res.Instances, "submissions", res.Submissions)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewPrometheusMetrics(reg)
	hub := httpapi.NewLiveHub(metrics, logger)
	defer hub.Close()

	deps := application.Dependencies{
		Store:    store,
		Cache:    previewCache,
		Events:   hub,
		Metrics:  metrics,
		Observer: middleware.NewOTelOperationObserver(metrics),
		Logger:   logger,
		Previews: application.NewPreviewGenerations(),
	}
	judging, err := application.NewJudgingService(deps)
	if err != nil {
		return err
	}
	criteria, err := application.NewCriteriaService(deps)
	if err != nil {
		return err
	}
	ranking, err := application.NewRankingService(deps, cfg.Scoring, cfg.Cache.PreviewTTL)
	if err != nil {
		return err
	}
	lifecycle, err := application.NewLifecycleService(deps, ranking)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(httpapi.Config{
		GinMode:        cfg.Server.GinMode,
		RatePerSecond:  cfg.Server.RatePerSecond,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
	}, httpapi.Deps{
		Services: httpapi.Services{Judging: judging, Criteria: criteria, Ranking: ranking, Lifecycle: lifecycle},
		Hub:      hub,
		Metrics:  metrics,
		Gatherer: reg,
		Health:   store.Ping,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	dispatcher, err := notify.NewDispatcher(store, notify.NewLogNotifier(logger), metrics, logger, notify.DispatcherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	return g.Wait()
}
