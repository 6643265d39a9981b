package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type Runner struct {
	Logger *zap.Logger
	// ShutdownTimeout bounds each cleanup hook; zero means 10s.
	ShutdownTimeout time.Duration

	hooks []func(context.Context) error
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// OnShutdown registers cleanup hooks, run in reverse registration order once
// the start function returns or a signal arrives.
func (r *Runner) OnShutdown(fn func(context.Context) error) {
	r.hooks = append(r.hooks, fn)
}

// WithSignals runs start until SIGINT/SIGTERM or until it returns, then runs the
// shutdown hooks. The returned value is the process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx, start)
}

func (r *Runner) Run(ctx context.Context, start func(ctx context.Context) error) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	code := 0
	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("service exited with error", zap.Error(err))
			code = 1
		}
	}
	cancel()
	r.Graceful()
	return code
}

// Graceful runs the registered hooks, each under its own timeout.
func (r *Runner) Graceful() {
	timeout := r.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	for i := len(r.hooks) - 1; i >= 0; i-- {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		if err := r.hooks[i](c); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Warn("shutdown hook failed", zap.Error(err))
		}
		cancel()
	}
	r.hooks = nil
}

func Exit(code int) {
	os.Exit(code)
}
