package idempotency

import (
	"context"

	"github.com/example/membership-portal/internal/platform/db"
)

const subjectWebhook = "ghl.webhook"

type postgresStore struct {
	pool db.Pool
}

func newPostgresStore(pool db.Pool) *postgresStore {
	return &postgresStore{pool: pool}
}

// Check relies on INSERT ... ON CONFLICT; zero rows affected means a duplicate.
func (s *postgresStore) Check(ctx context.Context, eventID string) (bool, error) {
	const q = `INSERT INTO processed_events (event_id, subject, created_at)
	           VALUES ($1, $2, now())
	           ON CONFLICT (event_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, eventID, subjectWebhook)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (s *postgresStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE event_id = $1 AND subject = $2`, eventID, subjectWebhook)
	return err
}
