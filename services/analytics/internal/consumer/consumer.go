// Package consumer manages the JetStream pull consumer for the analytics service.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/analytics"
	"github.com/example/membership-portal/internal/platform/natsconn"
)

const durableName = "analytics_processor"

// Dispatcher is satisfied by *handler.Dispatcher.
type Dispatcher interface {
	Dispatch(subject string, data []byte) error
}

// Message is the subset of *nats.Msg the consumer settles.
type Message interface {
	Ack(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

type Options struct {
	BatchSize int
	MaxWait   time.Duration
}

type Consumer struct {
	sub        *nats.Subscription
	dispatcher Dispatcher
	opts       Options
	log        *zap.Logger
}

// New ensures the ANALYTICS stream and binds a durable pull consumer to it.
func New(js nats.JetStreamContext, d Dispatcher, opts Options, log *zap.Logger) (*Consumer, error) {
	if err := natsconn.EnsureStream(js, analytics.StreamConfig(), log); err != nil {
		return nil, err
	}

	sub, err := js.PullSubscribe("analytics.>", durableName, nats.BindStream(analytics.StreamName), nats.ManualAck())
	if err != nil {
		return nil, err
	}
	return &Consumer{sub: sub, dispatcher: d, opts: opts, log: log}, nil
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() { _ = c.sub.Unsubscribe() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := c.sub.Fetch(c.opts.BatchSize, nats.MaxWait(c.opts.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Error("analytics consumer: fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			c.Handle(msg.Subject, msg.Data, msg)
		}
	}
}

// Handle dispatches one message. Analytics is best effort: anything that does
// not decode is terminated, everything else is acked.
func (c *Consumer) Handle(subject string, data []byte, m Message) {
	settle := m.Ack
	if err := c.dispatcher.Dispatch(subject, data); err != nil {
		settle = m.Term
	}
	if err := settle(); err != nil {
		c.log.Warn("analytics consumer: ack", zap.Error(err))
	}
}
