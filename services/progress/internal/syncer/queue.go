package syncer

import (
	"context"
	"time"

	"github.com/example/membership-portal/internal/progress"
)

// SubjectSync carries beacon writes accepted before they were applied.
const SubjectSync = "progress.sync"

// StreamName is the JetStream stream holding progress.> subjects.
const StreamName = "PROGRESS"

// QueuedWrite is the envelope published to SubjectSync.
type QueuedWrite struct {
	EventID   string               `json:"event_id"`
	UserID    string               `json:"user_id"`
	Request   progress.SyncRequest `json:"request"`
	CreatedAt time.Time            `json:"created_at"`
}

// ApplyQueued applies a write taken off the queue. Redelivered events return
// store.ErrDuplicateEvent.
func (s *Service) ApplyQueued(ctx context.Context, w QueuedWrite) (Result, error) {
	return s.Sync(ctx, w.UserID, w.Request, Source{
		Transport: TransportBeacon,
		EventID:   w.EventID,
		Subject:   SubjectSync,
	})
}
