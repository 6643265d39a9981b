package main

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/config"
	"github.com/example/membership-portal/internal/platform/httpserver"
	"github.com/example/membership-portal/internal/platform/logging"
	"github.com/example/membership-portal/internal/platform/natsconn"
	"github.com/example/membership-portal/internal/platform/run"
	analyticsconfig "github.com/example/membership-portal/services/analytics/internal/config"
	"github.com/example/membership-portal/services/analytics/internal/consumer"
	"github.com/example/membership-portal/services/analytics/internal/handler"
	"github.com/example/membership-portal/services/analytics/internal/sink"
)

func main() {
	cfg, err := config.LoadService("analytics")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	acfg, err := analyticsconfig.Load()
	if err != nil {
		log.Error("analytics config", zap.Error(err))
		run.Exit(1)
	}
	if cfg.NATSURL == "" {
		log.Error("NATS_URL is required")
		run.Exit(1)
	}

	runner := run.New(log)

	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		run.Exit(1)
	}
	runner.OnShutdown(func(context.Context) error { return nc.Drain() })

	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		run.Exit(1)
	}

	dispatcher := handler.New(sink.NewMetrics(log), log)
	c, err := consumer.New(js, dispatcher, consumer.Options{
		BatchSize: acfg.Consumer.BatchSize,
		MaxWait:   acfg.Consumer.MaxWait,
	}, log)
	if err != nil {
		log.Error("consumer init", zap.Error(err))
		run.Exit(1)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName: cfg.ServiceName,
		ReadyFunc: func() error {
			if !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		},
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTPAddr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	runner.OnShutdown(srv.Shutdown)

	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			if err := c.Run(ctx); err != nil {
				log.Error("analytics consumer stopped", zap.Error(err))
			}
		}()
		log.Info("analytics consumer started")
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
