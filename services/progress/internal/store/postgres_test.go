package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/example/membership-portal/internal/progress"
)

var (
	t0 = time.Date(2026, 4, 2, 18, 0, 0, 0, time.UTC)
	t1 = t0.Add(45 * time.Second)
)

func newRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPostgresRepository(mock), mock
}

func recordCols() []string {
	return []string{"position_seconds", "duration_seconds", "completed", "device_id", "playback_state",
		"playback_speed", "client_ts_ms", "last_watched", "last_heartbeat"}
}

func nextRecord() progress.Record {
	return progress.Record{
		PositionSeconds: 120,
		DurationSeconds: 600,
		DeviceID:        "dev-1",
		PlaybackState:   progress.StatePlaying,
		PlaybackSpeed:   1,
		ClientTsMs:      t1.UnixMilli(),
		LastWatched:     t1,
		LastHeartbeat:   t1,
	}
}

func updateArgs(r progress.Record) []any {
	return []any{"u1", "l1", r.PositionSeconds, r.DurationSeconds, r.Completed, r.DeviceID,
		string(r.PlaybackState), r.PlaybackSpeed, r.ClientTsMs, r.LastWatched, r.LastHeartbeat}
}

func TestApply_UpdateExisting(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectForUpdate)).
		WithArgs("u1", "l1").
		WillReturnRows(pgxmock.NewRows(recordCols()).
			AddRow(100, 600, false, "dev-0", "paused", 1.0, t0.UnixMilli(), t0, t0))
	next := nextRecord()
	mock.ExpectExec(regexp.QuoteMeta(sqlUpdate)).
		WithArgs(updateArgs(next)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlInsertSample)).
		WithArgs("u1", "l1", 120, "dev-1", t1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var seen *progress.Record
	out, err := repo.Apply(context.Background(), Write{
		UserID: "u1", ContentItemID: "l1",
		Mutate: func(existing *progress.Record) (Mutation, error) {
			seen = existing
			return Mutation{Next: next, AppendSample: true}, nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	require.Equal(t, 100, seen.PositionSeconds)
	require.Equal(t, progress.StatePaused, seen.PlaybackState)
	require.Equal(t, "u1", out.UserID)
	require.Equal(t, 120, out.PositionSeconds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_FirstWriteInserts(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	next := nextRecord()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectForUpdate)).
		WithArgs("u1", "l1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(sqlInsert)).
		WithArgs(updateArgs(next)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err := repo.Apply(context.Background(), Write{
		UserID: "u1", ContentItemID: "l1",
		Mutate: func(existing *progress.Record) (Mutation, error) {
			require.Nil(t, existing)
			return Mutation{Next: next}, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_LostInsertRaceRereads(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	next := nextRecord()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectForUpdate)).
		WithArgs("u1", "l1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(sqlInsert)).
		WithArgs(updateArgs(next)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectForUpdate)).
		WithArgs("u1", "l1").
		WillReturnRows(pgxmock.NewRows(recordCols()).
			AddRow(300, 600, false, "dev-2", "playing", 1.0, t0.UnixMilli(), t0, t0))
	mock.ExpectExec(regexp.QuoteMeta(sqlUpdate)).
		WithArgs(updateArgs(next)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	calls := 0
	_, err := repo.Apply(context.Background(), Write{
		UserID: "u1", ContentItemID: "l1",
		Mutate: func(existing *progress.Record) (Mutation, error) {
			calls++
			if calls == 2 {
				require.NotNil(t, existing)
				require.Equal(t, 300, existing.PositionSeconds)
			}
			return Mutation{Next: next}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_DuplicateEvent(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(sqlMarkProcessed)).
		WithArgs("evt-1", "progress.sync").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	_, err := repo.Apply(context.Background(), Write{
		UserID: "u1", ContentItemID: "l1", EventID: "evt-1", Subject: "progress.sync",
		Mutate: func(*progress.Record) (Mutation, error) {
			t.Fatal("mutate must not run for a duplicate event")
			return Mutation{}, nil
		},
	})
	require.ErrorIs(t, err, ErrDuplicateEvent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_MutateErrorRollsBack(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(sqlSelectForUpdate)).
		WithArgs("u1", "l1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := repo.Apply(context.Background(), Write{
		UserID: "u1", ContentItemID: "l1",
		Mutate: func(*progress.Record) (Mutation, error) { return Mutation{}, boom },
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_TransientError(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "57P01"})

	_, err := repo.Apply(context.Background(), Write{UserID: "u1", ContentItemID: "l1"})
	require.ErrorIs(t, err, progress.ErrTransientStore)
}

func TestGet(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	mock.ExpectQuery(`(?s)SELECT .* FROM video_progress WHERE user_id=\$1 AND content_item_id=\$2`).
		WithArgs("u1", "l1").
		WillReturnRows(pgxmock.NewRows(recordCols()).
			AddRow(600, 600, true, "dev-1", "stopped", 1.25, t0.UnixMilli(), t0, t0))

	rec, err := repo.Get(context.Background(), "u1", "l1")
	require.NoError(t, err)
	require.True(t, rec.Completed)
	require.Equal(t, progress.StateStopped, rec.PlaybackState)
	require.Equal(t, 1.25, rec.PlaybackSpeed)
	require.Equal(t, "l1", rec.ContentItemID)

	mock.ExpectQuery(`(?s)SELECT .* FROM video_progress`).
		WithArgs("u1", "nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "u1", "nope")
	require.ErrorIs(t, err, progress.ErrNotFound)
}

func TestList_WithCursor(t *testing.T) {
	repo, mock := newRepo(t)
	defer mock.Close()

	cols := append([]string{"content_item_id"}, recordCols()...)
	mock.ExpectQuery(`FROM video_progress WHERE user_id=\$1 AND completed=false AND position_seconds > 0 AND \(last_watched, content_item_id\) < \(\$2, \$3\) ORDER BY last_watched DESC, content_item_id DESC LIMIT \$4`).
		WithArgs("u1", t1, "l9", 2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("l5", 100, 600, false, "dev-1", "paused", 1.0, t0.UnixMilli(), t0, t0).
			AddRow("l4", 50, 0, false, "dev-1", "playing", 1.0, t0.UnixMilli(), t0, t0))

	out, err := repo.List(context.Background(), "u1", 2, &Cursor{LastWatched: t1, ContentItemID: "l9"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "l5", out[0].ContentItemID)
	require.Equal(t, progress.StatePlaying, out[1].PlaybackState)
	require.NoError(t, mock.ExpectationsWereMet())
}
