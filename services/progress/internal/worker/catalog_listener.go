package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectLessonEvents matches the catalog's lesson upsert and delete events.
const SubjectLessonEvents = "catalog.lesson.>"

// Invalidator is satisfied by *catalogclient.Client.
type Invalidator interface {
	Invalidate(ctx context.Context, contentItemID string)
}

type lessonEvent struct {
	ID string `json:"id"`
}

// CatalogListener drops cached durations when a lesson changes. Each instance
// holds its own ephemeral subscription so every local cache sees every event.
type CatalogListener struct {
	cache Invalidator
	log   *zap.Logger
}

func NewCatalogListener(cache Invalidator, log *zap.Logger) *CatalogListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogListener{cache: cache, log: log.With(zap.String("consumer", "catalog_lessons"))}
}

// Start subscribes from new messages onward and unsubscribes when ctx is done.
func (l *CatalogListener) Start(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.Subscribe(SubjectLessonEvents, func(m *nats.Msg) {
		l.Handle(ctx, m.Data, m)
	}, nats.DeliverNew(), nats.ManualAck())
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (l *CatalogListener) Handle(ctx context.Context, data []byte, m Message) {
	var ev lessonEvent
	if err := json.Unmarshal(data, &ev); err != nil || strings.TrimSpace(ev.ID) == "" {
		l.log.Warn("dropping malformed catalog event", zap.Error(err))
		l.settle(m.Term())
		return
	}
	l.cache.Invalidate(ctx, ev.ID)
	l.log.Debug("duration cache invalidated", zap.String("content_item_id", ev.ID))
	l.settle(m.Ack())
}

func (l *CatalogListener) settle(err error) {
	if err != nil {
		l.log.Warn("ack failed", zap.Error(err))
	}
}
