package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/config"
	"github.com/example/membership-portal/internal/platform/db"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/logging"
	"github.com/example/membership-portal/internal/platform/natsconn"
	"github.com/example/membership-portal/internal/platform/run"
	provconfig "github.com/example/membership-portal/services/provisioning/internal/config"
	"github.com/example/membership-portal/services/provisioning/internal/ghl"
	"github.com/example/membership-portal/services/provisioning/internal/handlers"
	"github.com/example/membership-portal/services/provisioning/internal/idempotency"
	"github.com/example/membership-portal/services/provisioning/internal/publisher"
	memberstore "github.com/example/membership-portal/services/provisioning/internal/store"
)

func main() {
	cfg, err := config.LoadService("provisioning")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pcfg, err := provconfig.Load()
	if err != nil {
		log.Error("provisioning config", zap.Error(err))
		run.Exit(1)
	}

	runner := run.New(log)
	ctx := context.Background()

	var (
		members memberstore.MemberStore
		pool    db.Pool
	)
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, members are kept in memory (development only)")
		members = memberstore.NewMemoryMemberStore()
	} else {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Error("migrate", zap.Error(err))
			run.Exit(1)
		}
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db open", zap.Error(err))
			run.Exit(1)
		}
		runner.OnShutdown(func(context.Context) error {
			p.Close()
			return nil
		})
		pool = p
		members = memberstore.NewPostgresMemberStore(p)
	}

	idem, err := idempotency.NewStore(cfg.RedisDSN, pool, pcfg.Idempotency.TTL, cfg.IsProduction())
	if err != nil {
		log.Error("idempotency store", zap.Error(err))
		run.Exit(1)
	}
	log.Info("idempotency store initialised",
		zap.Bool("redis", cfg.RedisDSN != ""),
		zap.Bool("postgres", pool != nil),
	)

	js := initJetStream(log, cfg, runner)
	pub, err := publisher.New(js, log)
	if err != nil {
		log.Error("member publisher", zap.Error(err))
		run.Exit(1)
	}

	verifier := ghl.NewVerifier(pcfg.GHL.WebhookSecret)
	verifier.Tolerance = pcfg.GHL.Tolerance

	webhook := handlers.NewWebhookHandler(handlers.WebhookOptions{
		Verifier:      verifier,
		MembershipTag: pcfg.GHL.MembershipTag,
		Logger:        log,
		Idempotency:   idem,
		Members:       members,
		Publisher:     pub,
		Analytics:     analytics.New(js, log),
	})

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: cfg.ServiceName,
		ReadyFunc:   func() error { return members.Ping(context.Background()) },
	})
	r.With(httpserver.RateLimit(120, time.Minute)).Post("/v1/webhooks/ghl", webhook.ServeHTTP)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTPAddr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	runner.OnShutdown(srv.Shutdown)

	code := runner.WithSignals(func(context.Context) error {
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initJetStream returns nil when NATS is not configured or unreachable outside production.
func initJetStream(log *zap.Logger, cfg config.AppConfig, runner *run.Runner) nats.JetStreamContext {
	if cfg.NATSURL == "" {
		if cfg.IsProduction() {
			log.Error("NATS_URL is required in production")
			run.Exit(1)
		}
		return nil
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
	if err != nil {
		if cfg.IsProduction() {
			log.Error("NATS is required in production", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("NATS unavailable, member events will not be published", zap.Error(err))
		return nil
	}
	runner.OnShutdown(func(context.Context) error { return nc.Drain() })

	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		run.Exit(1)
	}
	return js
}
