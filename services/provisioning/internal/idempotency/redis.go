package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "provisioning:webhook:"

type redisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func newRedisStore(dsn string, ttl time.Duration) (*redisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DSN: %w", err)
	}
	return &redisStore{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (s *redisStore) Check(ctx context.Context, eventID string) (bool, error) {
	// SetNX reports true when the key was set, i.e. the event is new.
	set, err := s.client.SetNX(ctx, keyPrefix+eventID, 1, s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (s *redisStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, keyPrefix+eventID).Err()
}
