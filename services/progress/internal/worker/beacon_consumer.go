// Package worker consumes JetStream subjects for the progress service: queued
// beacon writes and catalog lesson changes.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/progress"
	"github.com/example/membership-portal/services/progress/internal/store"
	"github.com/example/membership-portal/services/progress/internal/syncer"
)

const durableName = "progress_sync"

// Applier is satisfied by *syncer.Service.
type Applier interface {
	ApplyQueued(ctx context.Context, w syncer.QueuedWrite) (syncer.Result, error)
}

// Message is the subset of *nats.Msg the consumer needs.
type Message interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

type Options struct {
	BatchSize int
	MaxWait   time.Duration
}

type Consumer struct {
	applier Applier
	log     *zap.Logger
	opts    Options
}

func NewConsumer(applier Applier, log *zap.Logger, opts Options) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{applier: applier, log: log.With(zap.String("consumer", durableName)), opts: opts}
}

// Start subscribes to progress.sync with a durable pull consumer and applies
// messages until ctx is done.
func (c *Consumer) Start(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(syncer.SubjectSync, durableName, nats.ManualAck())
	if err != nil {
		return err
	}

	go func() {
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(c.opts.BatchSize, nats.MaxWait(c.opts.MaxWait))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				c.log.Warn("fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			for _, m := range msgs {
				c.Handle(ctx, m.Data, m)
			}
		}
	}()
	return nil
}

// Handle applies one message and settles it. Redeliveries of an applied event
// and malformed payloads are acked or terminated; only transient failures are
// retried.
func (c *Consumer) Handle(ctx context.Context, data []byte, m Message) {
	var ev syncer.QueuedWrite
	if err := json.Unmarshal(data, &ev); err != nil || ev.EventID == "" {
		c.log.Warn("dropping malformed event", zap.Error(err))
		c.settle(m.Term())
		return
	}
	log := c.log.With(zap.String("event_id", ev.EventID), zap.String("user_id", ev.UserID))

	_, err := c.applier.ApplyQueued(ctx, ev)
	switch {
	case err == nil:
		c.settle(m.Ack())
	case errors.Is(err, store.ErrDuplicateEvent):
		log.Debug("event already applied")
		c.settle(m.Ack())
	case errors.Is(err, progress.ErrTransientStore):
		log.Warn("apply failed, will redeliver", zap.Error(err))
		c.settle(m.Nak())
	default:
		// Validation and auth failures will not improve on redelivery.
		log.Warn("dropping event", zap.Error(err))
		c.settle(m.Term())
	}
}

func (c *Consumer) settle(err error) {
	if err != nil {
		c.log.Warn("ack failed", zap.Error(err))
	}
}
