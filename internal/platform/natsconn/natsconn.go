// Package natsconn opens the JetStream connection the portal services share
// and keeps stream definitions converged.
package natsconn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var ErrNoURL = errors.New("natsconn: NATS_URL is empty")

type Options struct {
	URL string
	// Name shows up in the server's connection list; use the service name.
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Logger        *zap.Logger
}

func (o *Options) withDefaults() {
	if o.MaxReconnects == 0 {
		o.MaxReconnects = 5
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Connect dials once and fails fast; reconnects apply only after the first
// successful connection. Disconnects and reconnects are logged.
func Connect(opts Options) (*nats.Conn, error) {
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	opts.withDefaults()
	log := opts.Logger.With(zap.String("nats_url", opts.URL))

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

// StreamManager is the subset of nats.JetStreamContext EnsureStream uses.
type StreamManager interface {
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the named stream, or updates it in place when it
// already exists. Storage defaults to file.
func EnsureStream(js StreamManager, cfg *nats.StreamConfig, log *zap.Logger) error {
	if cfg.Storage == 0 {
		cfg.Storage = nats.FileStorage
	}
	if log == nil {
		log = zap.NewNop()
	}
	_, err := js.AddStream(cfg)
	if err == nil {
		log.Info("nats stream created", zap.String("stream", cfg.Name), zap.Strings("subjects", cfg.Subjects))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("add stream %s: %w", cfg.Name, err)
	}
	if _, err := js.UpdateStream(cfg); err != nil {
		return fmt.Errorf("update stream %s: %w", cfg.Name, err)
	}
	return nil
}
