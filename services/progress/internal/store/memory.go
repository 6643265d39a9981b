package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/membership-portal/internal/progress"
)

type pairKey struct{ user, item string }

// MemoryRepository is a development-only in-memory repository.
// WARNING: state is lost on restart and is not shared across instances.
type MemoryRepository struct {
	mu        sync.Mutex
	records   map[pairKey]progress.Record
	samples   []Sample
	processed map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:   make(map[pairKey]progress.Record),
		processed: make(map[string]struct{}),
	}
}

func (r *MemoryRepository) Apply(_ context.Context, w Write) (progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.EventID != "" {
		if _, ok := r.processed[w.EventID]; ok {
			return progress.Record{}, ErrDuplicateEvent
		}
	}

	k := pairKey{w.UserID, w.ContentItemID}
	var existing *progress.Record
	if cur, ok := r.records[k]; ok {
		existing = &cur
	}
	m, err := w.Mutate(existing)
	if err != nil {
		return progress.Record{}, err
	}
	next := m.Next
	next.UserID, next.ContentItemID = w.UserID, w.ContentItemID
	r.records[k] = next
	if m.AppendSample {
		r.samples = append(r.samples, sampleOf(next))
	}
	if w.EventID != "" {
		r.processed[w.EventID] = struct{}{}
	}
	return next, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID, contentItemID string) (progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pairKey{userID, contentItemID}]
	if !ok {
		return progress.Record{}, progress.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) List(_ context.Context, userID string, limit int, cursor *Cursor) ([]progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []progress.Record
	for k, rec := range r.records {
		if k.user != userID || rec.Completed || rec.PositionSeconds <= 0 {
			continue
		}
		if cursor != nil && !pastCursor(rec, *cursor) {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastWatched.Equal(all[j].LastWatched) {
			return all[i].LastWatched.After(all[j].LastWatched)
		}
		return all[i].ContentItemID > all[j].ContentItemID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// pastCursor reports whether rec sorts strictly after the cursor position in
// (last_watched DESC, content_item_id DESC) order.
func pastCursor(rec progress.Record, c Cursor) bool {
	if rec.LastWatched.Equal(c.LastWatched) {
		return rec.ContentItemID < c.ContentItemID
	}
	return rec.LastWatched.Before(c.LastWatched)
}

// Samples returns a copy of the appended heartbeat samples.
func (r *MemoryRepository) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
