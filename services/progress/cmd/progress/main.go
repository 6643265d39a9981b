package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/auth"
	"github.com/example/membership-portal/internal/platform/config"
	"github.com/example/membership-portal/internal/platform/db"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/logging"
	"github.com/example/membership-portal/internal/platform/natsconn"
	"github.com/example/membership-portal/internal/platform/run"
	"github.com/example/membership-portal/services/progress/internal/catalogclient"
	progressconfig "github.com/example/membership-portal/services/progress/internal/config"
	"github.com/example/membership-portal/services/progress/internal/handlers"
	"github.com/example/membership-portal/services/progress/internal/store"
	"github.com/example/membership-portal/services/progress/internal/syncer"
	"github.com/example/membership-portal/services/progress/internal/worker"
)

func main() {
	cfg, err := config.LoadService("progress")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pcfg, err := progressconfig.Load()
	if err != nil {
		log.Error("progress config", zap.Error(err))
		run.Exit(1)
	}

	runner := run.New(log)
	repo := initRepository(log, cfg, runner)

	var js nats.JetStreamContext
	if cfg.NATSURL != "" || cfg.IsProduction() {
		js = initJetStream(log, cfg, runner)
	} else {
		log.Warn("NATS_URL not set, beacon writes are applied synchronously and analytics is disabled")
	}

	var (
		durations syncer.DurationLookup
		catalog   *catalogclient.Client
	)
	if pcfg.Catalog.BaseURL != "" {
		var cache catalogclient.Cache
		if cfg.RedisDSN != "" {
			cache = catalogclient.NewRedisCache(cfg.RedisDSN)
		}
		catalog = catalogclient.New(catalogclient.Config{
			BaseURL:       pcfg.Catalog.BaseURL,
			InternalToken: pcfg.Catalog.InternalToken,
			Timeout:       pcfg.Catalog.Timeout,
			CacheTTL:      pcfg.Catalog.CacheTTL,
		}, cache, log)
		durations = catalog
	} else {
		log.Warn("CATALOG__BASE_URL not set, completion needs a client-reported duration")
	}

	svc := syncer.New(repo, durations, analytics.New(js, log), log, syncer.Config{
		HeartbeatInterval: pcfg.Progress.HeartbeatInterval,
	})
	h := handlers.New(svc, handlers.NewEventPublisher(js, pcfg.Progress.AsyncWrites), log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: cfg.ServiceName,
		ReadyFunc:   func() error { return repo.Ping(context.Background()) },
	})
	h.Mount(r, handlers.RouteOptions{
		Verifier:      auth.JWTVerifier{Secret: []byte(pcfg.Auth.JWTSecret), Issuer: pcfg.Auth.JWTIssuer},
		SessionCookie: pcfg.Auth.SessionCookie,
		SyncRequests:  pcfg.Progress.SyncRateLimit,
		SyncWindow:    pcfg.Progress.SyncRateWindow,
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTPAddr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	runner.OnShutdown(srv.Shutdown)

	code := runner.WithSignals(func(ctx context.Context) error {
		if js != nil && pcfg.Progress.AsyncWrites {
			consumer := worker.NewConsumer(svc, log, worker.Options{
				BatchSize: pcfg.Progress.WorkerBatchSize,
				MaxWait:   pcfg.Progress.WorkerMaxWait,
			})
			if err := consumer.Start(ctx, js); err != nil {
				return err
			}
		}
		if js != nil && catalog != nil {
			// The catalog stream may not exist yet; cached durations then expire by TTL.
			if err := worker.NewCatalogListener(catalog, log).Start(ctx, js); err != nil {
				log.Warn("catalog event subscription failed", zap.Error(err))
			}
		}
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initRepository picks Postgres when DATABASE_URL is set and falls back to
// memory outside production.
func initRepository(log *zap.Logger, cfg config.AppConfig, runner *run.Runner) store.Repository {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, progress is kept in memory (development only)")
		return store.NewMemoryRepository()
	}

	ctx := context.Background()
	if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
		log.Error("migrate", zap.Error(err))
		run.Exit(1)
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	}
	runner.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})
	log.Info("postgres connected")
	return store.NewPostgresRepository(pool)
}

func initJetStream(log *zap.Logger, cfg config.AppConfig, runner *run.Runner) nats.JetStreamContext {
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
	if err != nil {
		if cfg.IsProduction() {
			log.Error("NATS is required in production", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("NATS unavailable, beacon writes are applied synchronously", zap.Error(err))
		return nil
	}
	runner.OnShutdown(func(context.Context) error {
		return nc.Drain()
	})

	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		run.Exit(1)
	}
	streams := []*nats.StreamConfig{
		{Name: syncer.StreamName, Subjects: []string{"progress.>"}},
		analytics.StreamConfig(),
	}
	for _, sc := range streams {
		if err := natsconn.EnsureStream(js, sc, log); err != nil {
			log.Error("ensure stream", zap.String("stream", sc.Name), zap.Error(err))
			run.Exit(1)
		}
	}
	return js
}
