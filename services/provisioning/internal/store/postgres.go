package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/membership-portal/internal/platform/db"
)

type PostgresMemberStore struct {
	db  db.Pool
	now func() time.Time
}

func NewPostgresMemberStore(pool db.Pool) *PostgresMemberStore {
	return &PostgresMemberStore{db: pool, now: time.Now}
}

const memberColumns = `id::text, ghl_contact_id, email, first_name, last_name, active, created_at, updated_at`

func (s *PostgresMemberStore) Upsert(ctx context.Context, m Member) (Member, bool, error) {
	now := s.now().UTC()
	// xmax is zero only for rows this statement inserted.
	q := `INSERT INTO members (id, ghl_contact_id, email, first_name, last_name, active, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	      ON CONFLICT (ghl_contact_id) DO UPDATE SET
	        email = EXCLUDED.email,
	        first_name = EXCLUDED.first_name,
	        last_name = EXCLUDED.last_name,
	        active = EXCLUDED.active,
	        updated_at = EXCLUDED.updated_at
	      RETURNING ` + memberColumns + `, (xmax = 0)`

	var (
		out     Member
		created bool
	)
	err := s.db.QueryRow(ctx, q, uuid.NewString(), m.GHLContactID, m.Email, m.FirstName, m.LastName, m.Active, now).
		Scan(&out.ID, &out.GHLContactID, &out.Email, &out.FirstName, &out.LastName, &out.Active, &out.CreatedAt, &out.UpdatedAt, &created)
	if err != nil {
		return Member{}, false, err
	}
	return out, created, nil
}

func (s *PostgresMemberStore) Deactivate(ctx context.Context, contactID string) (Member, error) {
	q := `UPDATE members SET active = false, updated_at = $2
	      WHERE ghl_contact_id = $1
	      RETURNING ` + memberColumns
	return s.scanOne(s.db.QueryRow(ctx, q, contactID, s.now().UTC()))
}

func (s *PostgresMemberStore) GetByContact(ctx context.Context, contactID string) (Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE ghl_contact_id = $1`
	return s.scanOne(s.db.QueryRow(ctx, q, contactID))
}

func (s *PostgresMemberStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresMemberStore) scanOne(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.GHLContactID, &m.Email, &m.FirstName, &m.LastName, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, err
	}
	return m, nil
}
