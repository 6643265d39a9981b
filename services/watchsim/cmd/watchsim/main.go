// Command watchsim plays simulated viewers against a running portal to exercise
// progress sync end to end.
package main

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/example/membership-portal/internal/platform/config"
	"github.com/example/membership-portal/internal/platform/logging"
	"github.com/example/membership-portal/internal/platform/run"
	"github.com/example/membership-portal/internal/playback"
	simconfig "github.com/example/membership-portal/services/watchsim/internal/config"
	"github.com/example/membership-portal/services/watchsim/internal/sim"
)

func main() {
	cfg, err := config.LoadService("watchsim")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	scfg, err := simconfig.Load()
	if err != nil {
		log.Error("watchsim config", zap.Error(err))
		run.Exit(1)
	}

	sc := sim.Scenario{
		UserID:          scfg.UserID,
		ContentItemID:   scfg.ContentItemID,
		DurationSeconds: scfg.DurationSeconds,
		PlaybackRate:    scfg.PlaybackRate,
		TimeScale:       scfg.TimeScale,
		WatchFor:        scfg.WatchFor,
		SeekEvery:       scfg.SeekEvery,
		SeekBy:          scfg.SeekBy,
		Exit:            scfg.Exit,
		SampleInterval:  scfg.SampleInterval,
		ThrottleWindow:  scfg.ThrottleWindow,
		BeaconGrace:     scfg.BeaconGrace,
	}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		ramp := rate.NewLimiter(rate.Limit(scfg.RampPerSecond), 1)
		g, ctx := errgroup.WithContext(ctx)

		for i := 0; i < scfg.Viewers; i++ {
			if err := ramp.Wait(ctx); err != nil {
				break
			}
			deviceID := uuid.NewString()
			vlog := log.With(zap.Int("viewer", i), zap.String("device_id", deviceID))

			transport := playback.NewHTTPTransport(scfg.BaseURL, scfg.Token, vlog)
			if scfg.SessionCookie != "" {
				transport.SessionCookie = scfg.SessionCookie
			}
			v := sim.Viewer{DeviceID: deviceID, Transport: transport, Log: vlog}

			g.Go(func() error {
				sum, err := v.Run(ctx, sc)
				if err != nil {
					vlog.Warn("viewer finished with pending sends", zap.Error(err))
					return nil
				}
				vlog.Info("viewer finished",
					zap.Int("resumed_at", sum.ResumedAt),
					zap.Float64("final_position", sum.FinalPosition),
					zap.Int("seeks", sum.Seeks),
					zap.Bool("ended", sum.Ended),
					zap.String("exit", sum.Exit),
				)
				return nil
			})
		}
		return g.Wait()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
