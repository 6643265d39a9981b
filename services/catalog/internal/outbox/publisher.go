// Package outbox relays catalog_outbox rows to JetStream.
package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/db"
	"github.com/example/membership-portal/internal/platform/natsconn"
)

const StreamName = "CATALOG_EVENTS"

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type Publisher struct {
	Log          *zap.Logger
	DB           db.Pool
	JS           jetStream
	BatchSize    int
	PollInterval time.Duration
}

type outboxRow struct {
	ID        string
	EventType string
	Payload   []byte
}

// NewPublisher ensures the CATALOG_EVENTS stream exists and returns a relay for it.
func NewPublisher(log *zap.Logger, pool db.Pool, js nats.JetStreamContext) (*Publisher, error) {
	err := natsconn.EnsureStream(js, &nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"catalog.>"},
		MaxAge:   7 * 24 * time.Hour,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		Log:          log,
		DB:           pool,
		JS:           js,
		BatchSize:    100,
		PollInterval: 2 * time.Second,
	}, nil
}

func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.FlushOnce(ctx); err != nil {
				p.Log.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// FlushOnce publishes one batch of pending rows and marks them published. A
// publish failure leaves the whole batch pending; consumers see at-least-once.
func (p *Publisher) FlushOnce(ctx context.Context) (int, error) {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, event_type, payload
FROM catalog_outbox
WHERE published_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`, p.BatchSize)
	if err != nil {
		return 0, err
	}

	items := make([]outboxRow, 0, p.BatchSize)
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.EventType, &item.Payload); err != nil {
			rows.Close()
			return 0, err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, err := p.JS.Publish(item.EventType, item.Payload, nats.MsgId(item.ID)); err != nil {
			return 0, err
		}
		ids = append(ids, item.ID)
	}

	if _, err := tx.Exec(ctx, `UPDATE catalog_outbox SET published_at = now() WHERE id::text = ANY($1)`, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(items), nil
}
