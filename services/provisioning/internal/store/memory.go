package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryMemberStore is the development fallback used when DATABASE_URL is unset.
type MemoryMemberStore struct {
	mu        sync.Mutex
	byContact map[string]Member
	now       func() time.Time
}

func NewMemoryMemberStore() *MemoryMemberStore {
	return &MemoryMemberStore{byContact: make(map[string]Member), now: time.Now}
}

func (s *MemoryMemberStore) Upsert(_ context.Context, m Member) (Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	cur, ok := s.byContact[m.GHLContactID]
	if !ok {
		cur = Member{ID: uuid.NewString(), GHLContactID: m.GHLContactID, CreatedAt: now}
	}
	cur.Email = m.Email
	cur.FirstName = m.FirstName
	cur.LastName = m.LastName
	cur.Active = m.Active
	cur.UpdatedAt = now
	s.byContact[m.GHLContactID] = cur
	return cur, !ok, nil
}

func (s *MemoryMemberStore) Deactivate(_ context.Context, contactID string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byContact[contactID]
	if !ok {
		return Member{}, ErrNotFound
	}
	cur.Active = false
	cur.UpdatedAt = s.now().UTC()
	s.byContact[contactID] = cur
	return cur, nil
}

func (s *MemoryMemberStore) GetByContact(_ context.Context, contactID string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byContact[contactID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryMemberStore) Ping(context.Context) error { return nil }
