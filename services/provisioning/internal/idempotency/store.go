// Package idempotency deduplicates CRM webhook deliveries by webhook ID.
//
// Primary backend: Redis SETNX with TTL (REDIS_DSN).
// Fallback: Postgres processed_events (DATABASE_URL).
// Without either, an in-memory store is used (development only).
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/example/membership-portal/internal/platform/db"
)

// Store checks whether an event has already been processed and marks it.
type Store interface {
	// Check returns true if eventID was already processed.
	// If not seen, it atomically marks it as processed.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)
	// Forget removes the mark so a failed delivery can be retried.
	Forget(ctx context.Context, eventID string) error
}

// NewStore picks the best available backend: Redis > Postgres > in-memory.
// In production the in-memory fallback is refused.
func NewStore(redisDSN string, pool db.Pool, ttl time.Duration, isProd bool) (Store, error) {
	if redisDSN != "" {
		return newRedisStore(redisDSN, ttl)
	}
	if pool != nil {
		return newPostgresStore(pool), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for idempotency; in-memory store is not allowed")
	}
	return newMemoryStore(), nil
}
