// Package publisher publishes member lifecycle events to NATS JetStream.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/platform/natsconn"
)

const (
	SubjectMemberProvisioned = "members.provisioned"
	SubjectMemberDeactivated = "members.deactivated"
	StreamName               = "MEMBERS"
)

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher publishes member events. A nil js yields a stub that only logs.
type Publisher struct {
	js  jetStream
	log *zap.Logger
}

// New ensures the MEMBERS stream exists when js is set.
func New(js nats.JetStreamContext, log *zap.Logger) (*Publisher, error) {
	if js == nil {
		log.Warn("NATS not configured, member events will not be published (stub mode)")
		return &Publisher{log: log}, nil
	}
	err := natsconn.EnsureStream(js, &nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"members.>"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Publisher{js: js, log: log}, nil
}

// MemberEvent is the payload published on members.* subjects.
type MemberEvent struct {
	EventID      string    `json:"event_id"`
	MemberID     string    `json:"member_id"`
	GHLContactID string    `json:"ghl_contact_id"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publish sends evt on subject. EventID doubles as the JetStream dedupe ID so
// redelivered webhooks do not produce duplicate messages.
func (p *Publisher) Publish(_ context.Context, subject string, evt MemberEvent) error {
	if p.js == nil {
		p.log.Debug("NATS stub: skipping publish", zap.String("subject", subject), zap.String("event_id", evt.EventID))
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(subject, data, nats.MsgId(evt.EventID))
	if err != nil {
		return err
	}

	p.log.Debug("member event published",
		zap.String("subject", subject),
		zap.String("event_id", evt.EventID),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}
