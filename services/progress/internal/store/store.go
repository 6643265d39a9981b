// Package store persists progress records and heartbeat samples.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/membership-portal/internal/progress"
)

// ErrDuplicateEvent is returned by Apply when the write's event was already applied.
var ErrDuplicateEvent = errors.New("store: event already processed")

// Mutation is the next state computed from the locked record.
type Mutation struct {
	Next progress.Record
	// AppendSample stores a heartbeat sample in the same transaction.
	AppendSample bool
}

// MutateFunc receives the current record (nil on first write) and returns the next one.
type MutateFunc func(existing *progress.Record) (Mutation, error)

type Write struct {
	UserID        string
	ContentItemID string
	// EventID dedupes writes that arrive through the queue. Optional.
	EventID string
	Subject string
	Mutate  MutateFunc
}

// Cursor is the decoded keyset position for List.
type Cursor struct {
	LastWatched   time.Time
	ContentItemID string
}

type Sample struct {
	UserID          string
	ContentItemID   string
	PositionSeconds int
	DeviceID        string
	RecordedAt      time.Time
}

// Repository is the single point of serialisation for a (user, content item) pair.
type Repository interface {
	// Apply locks the pair's record, runs w.Mutate and persists the result atomically.
	Apply(ctx context.Context, w Write) (progress.Record, error)
	// Get returns the stored record or progress.ErrNotFound.
	Get(ctx context.Context, userID, contentItemID string) (progress.Record, error)
	// List returns unfinished records ordered by last_watched DESC; cursor is an exclusive bound.
	List(ctx context.Context, userID string, limit int, cursor *Cursor) ([]progress.Record, error)
	Ping(ctx context.Context) error
}

func sampleOf(r progress.Record) Sample {
	return Sample{
		UserID:          r.UserID,
		ContentItemID:   r.ContentItemID,
		PositionSeconds: r.PositionSeconds,
		DeviceID:        r.DeviceID,
		RecordedAt:      r.LastHeartbeat,
	}
}
