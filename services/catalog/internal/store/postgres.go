package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/membership-portal/internal/platform/db"
)

// PostgresCatalogStore is the production Postgres-backed implementation.
type PostgresCatalogStore struct {
	db  db.Pool
	now func() time.Time
}

func NewPostgresCatalogStore(pool db.Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: pool, now: func() time.Time { return time.Now().UTC() }}
}

const lessonCols = `l.id, l.course_id, l.kind, l.title, l.description, l.mux_playback_id,
       l.duration_seconds, l.position, l.updated_at, c.published`

// ── Course reads ───────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) ListCourses(ctx context.Context, includeDrafts bool) ([]Course, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, title, slug, description, published, position, updated_at
FROM courses
WHERE published OR $1
ORDER BY position, title`, includeDrafts)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.Published, &c.Position, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRow(ctx, `
SELECT id, title, slug, description, published, position, updated_at
FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.Published, &c.Position, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// ── Lesson reads ───────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+lessonCols+`
FROM lessons l JOIN courses c ON c.id = l.course_id
WHERE l.course_id = $1
ORDER BY l.position, l.title`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+lessonCols+`
FROM lessons l JOIN courses c ON c.id = l.course_id
WHERE l.id = $1`, id)
	l, err := scanLesson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	return l, err
}

func scanLesson(row pgx.Row) (Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.CourseID, &l.Kind, &l.Title, &l.Description, &l.MuxPlaybackID,
		&l.DurationSeconds, &l.Position, &l.UpdatedAt, &l.Published)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, fmt.Errorf("scan lesson: %w", err)
	}
	return l, err
}

// ── Writes ─────────────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) UpsertCourse(ctx context.Context, c Course) (Course, error) {
	c.UpdatedAt = s.now()
	_, err := s.db.Exec(ctx, `
INSERT INTO courses (id, title, slug, description, published, position, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	slug = EXCLUDED.slug,
	description = EXCLUDED.description,
	published = EXCLUDED.published,
	position = EXCLUDED.position,
	updated_at = EXCLUDED.updated_at`,
		c.ID, c.Title, c.Slug, c.Description, c.Published, c.Position, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Course{}, ErrSlugTaken
		}
		return Course{}, fmt.Errorf("upsert course: %w", err)
	}
	return c, nil
}

// UpsertLesson writes the lesson and its outbox event in one transaction.
func (s *PostgresCatalogStore) UpsertLesson(ctx context.Context, l Lesson) (Lesson, error) {
	l.UpdatedAt = s.now()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Lesson{}, fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `SELECT published FROM courses WHERE id = $1 FOR SHARE`, l.CourseID).Scan(&l.Published); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lesson{}, ErrCourseNotFound
		}
		return Lesson{}, fmt.Errorf("lock course: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO lessons (id, course_id, kind, title, description, mux_playback_id, duration_seconds, position, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	course_id = EXCLUDED.course_id,
	kind = EXCLUDED.kind,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	mux_playback_id = EXCLUDED.mux_playback_id,
	duration_seconds = EXCLUDED.duration_seconds,
	position = EXCLUDED.position,
	updated_at = EXCLUDED.updated_at`,
		l.ID, l.CourseID, l.Kind, l.Title, l.Description, l.MuxPlaybackID, l.DurationSeconds, l.Position, l.UpdatedAt)
	if err != nil {
		return Lesson{}, fmt.Errorf("upsert lesson: %w", err)
	}

	if err := s.enqueue(ctx, tx, EventLessonUpserted, LessonEvent{ID: l.ID, CourseID: l.CourseID, DurationSeconds: l.DurationSeconds}); err != nil {
		return Lesson{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Lesson{}, fmt.Errorf("db commit: %w", err)
	}
	return l, nil
}

func (s *PostgresCatalogStore) DeleteLesson(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var courseID string
	if err := tx.QueryRow(ctx, `DELETE FROM lessons WHERE id = $1 RETURNING course_id`, id).Scan(&courseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete lesson: %w", err)
	}
	if err := s.enqueue(ctx, tx, EventLessonDeleted, LessonEvent{ID: id, CourseID: courseID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db commit: %w", err)
	}
	return nil
}

func (s *PostgresCatalogStore) enqueue(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO catalog_outbox (id, event_type, payload, created_at) VALUES ($1,$2,$3,$4)`,
		uuid.New(), eventType, body, s.now()); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (s *PostgresCatalogStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
