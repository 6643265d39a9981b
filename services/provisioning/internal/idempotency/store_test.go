package idempotency

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

func TestMemoryStore_FirstCallIsNotDuplicate(t *testing.T) {
	s := newMemoryStore()
	dup, err := s.Check(context.Background(), "wh_001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatal("first check should not be duplicate")
	}
}

func TestMemoryStore_SecondCallIsDuplicate(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "wh_002")

	dup, err := s.Check(ctx, "wh_002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dup {
		t.Fatal("second check should be duplicate")
	}
}

func TestMemoryStore_ForgetAllowsRetry(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, _ = s.Check(ctx, "wh_003")
	if err := s.Forget(ctx, "wh_003"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	dup, _ := s.Check(ctx, "wh_003")
	if dup {
		t.Fatal("forgotten event should be processed again")
	}
}

func TestPostgresStore_Check(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("wh_1", subjectWebhook).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("wh_1", subjectWebhook).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	s := newPostgresStore(mock)
	if dup, err := s.Check(context.Background(), "wh_1"); err != nil || dup {
		t.Fatalf("first check: dup=%v err=%v", dup, err)
	}
	if dup, err := s.Check(context.Background(), "wh_1"); err != nil || !dup {
		t.Fatalf("second check: dup=%v err=%v", dup, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewStore_Selection(t *testing.T) {
	s, err := NewStore("", nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memoryStore when nothing is configured, got %T", s)
	}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	if s, _ := NewStore("", mock, 0, true); s == nil {
		t.Fatal("expected postgres store")
	} else if _, ok := s.(*postgresStore); !ok {
		t.Fatalf("expected postgresStore, got %T", s)
	}

	s, err = NewStore("redis://localhost:6379/0", mock, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*redisStore); !ok {
		t.Fatalf("expected redisStore to win, got %T", s)
	}

	if _, err := NewStore("::not a url", nil, 0, false); err == nil {
		t.Fatal("expected parse error for bad REDIS_DSN")
	}
}

func TestNewStore_RejectsMemoryInProd(t *testing.T) {
	s, err := NewStore("", nil, 0, true)
	if err == nil {
		t.Fatalf("expected error in production with no backend, got store %T", s)
	}
	if s != nil {
		t.Fatalf("expected nil store, got %T", s)
	}
}
