package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/example/membership-portal/internal/progress"
	"github.com/example/membership-portal/services/progress/internal/syncer"
)

var ErrAsyncPublishDisabled = errors.New("async publish is disabled")

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// EventPublisher queues beacon writes on JetStream so the unload request can
// be answered before the write is applied.
type EventPublisher struct {
	js          jetStream
	asyncWrites bool
	now         func() time.Time
}

func NewEventPublisher(js nats.JetStreamContext, asyncWrites bool) *EventPublisher {
	p := &EventPublisher{asyncWrites: asyncWrites, now: time.Now}
	if js != nil {
		p.js = js
	}
	return p
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.js != nil && p.asyncWrites
}

// PublishSync returns the generated event ID once JetStream has acknowledged the write.
func (p *EventPublisher) PublishSync(userID string, req progress.SyncRequest) (string, error) {
	if !p.Enabled() {
		return "", ErrAsyncPublishDisabled
	}

	ev := syncer.QueuedWrite{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Request:   req,
		CreatedAt: p.now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	// The event ID doubles as the JetStream dedupe key.
	if _, err := p.js.Publish(syncer.SubjectSync, body, nats.MsgId(ev.EventID)); err != nil {
		return "", err
	}
	return ev.EventID, nil
}
