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
	"github.com/example/membership-portal/internal/platform/signing"
	catalogconfig "github.com/example/membership-portal/services/catalog/internal/config"
	"github.com/example/membership-portal/services/catalog/internal/handlers"
	"github.com/example/membership-portal/services/catalog/internal/outbox"
	catalogstore "github.com/example/membership-portal/services/catalog/internal/store"
)

func main() {
	cfg, err := config.LoadService("catalog")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ccfg, err := catalogconfig.Load()
	if err != nil {
		log.Error("catalog config", zap.Error(err))
		run.Exit(1)
	}

	runner := run.New(log)
	ctx := context.Background()

	var (
		st   catalogstore.CatalogStore
		pool db.Pool
	)
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, catalog is kept in memory (development only)")
		st = catalogstore.NewMemoryCatalogStore()
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
		st = catalogstore.NewPostgresCatalogStore(p)
	}

	var signer *signing.Signer
	if ccfg.Mux.SigningKey != "" {
		signer, err = signing.New(ccfg.Mux.SigningKeyID, ccfg.Mux.SigningKey, ccfg.Mux.TokenTTL)
		if err != nil {
			log.Error("mux signing key", zap.Error(err))
			run.Exit(1)
		}
	} else {
		log.Warn("MUX__SIGNING_KEY not set, playback tokens are disabled")
	}

	var js nats.JetStreamContext
	if cfg.NATSURL != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
		if err != nil {
			if cfg.IsProduction() {
				log.Error("NATS is required in production", zap.Error(err))
				run.Exit(1)
			}
			log.Warn("NATS unavailable, catalog events and analytics are disabled", zap.Error(err))
		} else {
			runner.OnShutdown(func(context.Context) error { return nc.Drain() })
			if js, err = nc.JetStream(); err != nil {
				log.Error("jetstream", zap.Error(err))
				run.Exit(1)
			}
		}
	}

	var relay *outbox.Publisher
	if js != nil && pool != nil {
		relay, err = outbox.NewPublisher(log, pool, js)
		if err != nil {
			log.Error("outbox publisher", zap.Error(err))
			run.Exit(1)
		}
		relay.BatchSize = ccfg.Outbox.BatchSize
		relay.PollInterval = ccfg.Outbox.PollInterval
	}

	h := handlers.New(st, handlers.Options{
		Signer:     signer,
		StreamBase: ccfg.Mux.StreamBase,
		Analytics:  analytics.New(js, log),
		Logger:     log,
	})

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: cfg.ServiceName,
		ReadyFunc:   func() error { return st.Ping(context.Background()) },
	})
	h.Mount(r, auth.JWTVerifier{Secret: []byte(ccfg.Auth.JWTSecret), Issuer: ccfg.Auth.JWTIssuer}, ccfg.Internal.Token)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTPAddr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	runner.OnShutdown(srv.Shutdown)

	code := runner.WithSignals(func(ctx context.Context) error {
		if relay != nil {
			go func() {
				if err := relay.Run(ctx); err != nil {
					log.Error("outbox publisher stopped", zap.Error(err))
				}
			}()
		}
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
