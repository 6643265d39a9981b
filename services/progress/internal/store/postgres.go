package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/example/membership-portal/internal/platform/db"
	"github.com/example/membership-portal/internal/progress"
)

// PostgresRepository is the production Postgres-backed implementation.
type PostgresRepository struct {
	db db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const (
	selectCols = `position_seconds, duration_seconds, completed, device_id, playback_state,
       playback_speed, client_ts_ms, last_watched, last_heartbeat`

	sqlSelectForUpdate = `SELECT ` + selectCols + `
FROM video_progress WHERE user_id=$1 AND content_item_id=$2 FOR UPDATE`

	sqlInsert = `INSERT INTO video_progress (user_id, content_item_id, position_seconds, duration_seconds,
       completed, device_id, playback_state, playback_speed, client_ts_ms, last_watched, last_heartbeat)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (user_id, content_item_id) DO NOTHING`

	sqlUpdate = `UPDATE video_progress SET position_seconds=$3, duration_seconds=$4, completed=$5,
       device_id=$6, playback_state=$7, playback_speed=$8, client_ts_ms=$9, last_watched=$10, last_heartbeat=$11
WHERE user_id=$1 AND content_item_id=$2`

	sqlInsertSample = `INSERT INTO heartbeat_samples (user_id, content_item_id, position_seconds, device_id, recorded_at)
VALUES ($1,$2,$3,$4,$5)`

	sqlMarkProcessed = `INSERT INTO processed_events (event_id, subject, created_at)
VALUES ($1,$2,now()) ON CONFLICT (event_id) DO NOTHING`
)

// errLostInsertRace means a concurrent first write created the row between our
// locking read and our insert.
var errLostInsertRace = errors.New("store: concurrent insert")

func (r *PostgresRepository) Apply(ctx context.Context, w Write) (progress.Record, error) {
	rec, err := r.applyOnce(ctx, w)
	if errors.Is(err, errLostInsertRace) {
		// The row exists now, so the second attempt takes the row lock.
		rec, err = r.applyOnce(ctx, w)
	}
	if err != nil {
		return progress.Record{}, classify(err)
	}
	return rec, nil
}

func (r *PostgresRepository) applyOnce(ctx context.Context, w Write) (out progress.Record, err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return progress.Record{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if w.EventID != "" {
		tag, err := tx.Exec(ctx, sqlMarkProcessed, w.EventID, w.Subject)
		if err != nil {
			return progress.Record{}, err
		}
		if tag.RowsAffected() == 0 {
			return progress.Record{}, ErrDuplicateEvent
		}
	}

	var existing *progress.Record
	cur, scanErr := scanRecord(tx.QueryRow(ctx, sqlSelectForUpdate, w.UserID, w.ContentItemID))
	switch {
	case scanErr == nil:
		cur.UserID, cur.ContentItemID = w.UserID, w.ContentItemID
		existing = &cur
	case errors.Is(scanErr, pgx.ErrNoRows):
	default:
		return progress.Record{}, scanErr
	}

	m, err := w.Mutate(existing)
	if err != nil {
		return progress.Record{}, err
	}
	next := m.Next
	next.UserID, next.ContentItemID = w.UserID, w.ContentItemID
	args := []any{
		next.UserID, next.ContentItemID, next.PositionSeconds, next.DurationSeconds, next.Completed,
		next.DeviceID, string(next.PlaybackState), next.PlaybackSpeed, next.ClientTsMs,
		next.LastWatched, next.LastHeartbeat,
	}

	if existing == nil {
		tag, err := tx.Exec(ctx, sqlInsert, args...)
		if err != nil {
			return progress.Record{}, err
		}
		if tag.RowsAffected() == 0 {
			return progress.Record{}, errLostInsertRace
		}
	} else if _, err := tx.Exec(ctx, sqlUpdate, args...); err != nil {
		return progress.Record{}, err
	}

	if m.AppendSample {
		s := sampleOf(next)
		if _, err := tx.Exec(ctx, sqlInsertSample, s.UserID, s.ContentItemID, s.PositionSeconds, s.DeviceID, s.RecordedAt); err != nil {
			return progress.Record{}, err
		}
	}
	return next, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, contentItemID string) (progress.Record, error) {
	q := `SELECT ` + selectCols + ` FROM video_progress WHERE user_id=$1 AND content_item_id=$2`
	rec, err := scanRecord(r.db.QueryRow(ctx, q, userID, contentItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return progress.Record{}, progress.ErrNotFound
		}
		return progress.Record{}, classify(err)
	}
	rec.UserID, rec.ContentItemID = userID, contentItemID
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, limit int, cursor *Cursor) ([]progress.Record, error) {
	q := `SELECT content_item_id, ` + selectCols + `
FROM video_progress WHERE user_id=$1 AND completed=false AND position_seconds > 0`
	args := []any{userID}

	if cursor != nil {
		q += " AND (last_watched, content_item_id) < ($2, $3)"
		args = append(args, cursor.LastWatched, cursor.ContentItemID)
	}
	q += " ORDER BY last_watched DESC, content_item_id DESC LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []progress.Record
	for rows.Next() {
		var (
			rec   progress.Record
			state string
		)
		if err := rows.Scan(&rec.ContentItemID, &rec.PositionSeconds, &rec.DurationSeconds, &rec.Completed,
			&rec.DeviceID, &state, &rec.PlaybackSpeed, &rec.ClientTsMs, &rec.LastWatched, &rec.LastHeartbeat); err != nil {
			return nil, classify(err)
		}
		rec.UserID = userID
		rec.PlaybackState = progress.State(state)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanRecord(row pgx.Row) (progress.Record, error) {
	var (
		rec   progress.Record
		state string
	)
	err := row.Scan(&rec.PositionSeconds, &rec.DurationSeconds, &rec.Completed, &rec.DeviceID, &state,
		&rec.PlaybackSpeed, &rec.ClientTsMs, &rec.LastWatched, &rec.LastHeartbeat)
	rec.PlaybackState = progress.State(state)
	return rec, err
}

func classify(err error) error {
	if db.IsTransient(err) {
		return fmt.Errorf("%w: %v", progress.ErrTransientStore, err)
	}
	return err
}
