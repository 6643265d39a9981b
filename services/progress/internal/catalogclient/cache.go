package catalogclient

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds durations looked up from the catalog.
type Cache interface {
	Get(ctx context.Context, id string) (int, bool)
	Set(ctx context.Context, id string, seconds int, ttl time.Duration)
	Delete(ctx context.Context, id string)
}

const redisKeyPrefix = "progress:duration:"

type redisCache struct {
	client *redis.Client
}

// NewRedisCache shares lookups across progress instances. A DSN that is not a
// redis:// URL is treated as host:port.
func NewRedisCache(dsn string) Cache {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return &redisCache{client: redis.NewClient(opts)}
}

func (c *redisCache) Get(ctx context.Context, id string) (int, bool) {
	v, err := c.client.Get(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (c *redisCache) Set(ctx context.Context, id string, seconds int, ttl time.Duration) {
	_ = c.client.Set(ctx, redisKeyPrefix+id, seconds, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, id string) {
	_ = c.client.Del(ctx, redisKeyPrefix+id).Err()
}

type memoryEntry struct {
	seconds int
	expires time.Time
}

type memoryCache struct {
	mu  sync.Mutex
	m   map[string]memoryEntry
	now func() time.Time
}

func NewMemoryCache() Cache {
	return &memoryCache{m: make(map[string]memoryEntry), now: time.Now}
}

func (c *memoryCache) Get(_ context.Context, id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[id]
	if !ok {
		return 0, false
	}
	if c.now().After(e.expires) {
		delete(c.m, id)
		return 0, false
	}
	return e.seconds, true
}

func (c *memoryCache) Set(_ context.Context, id string, seconds int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = memoryEntry{seconds: seconds, expires: c.now().Add(ttl)}
}

func (c *memoryCache) Delete(_ context.Context, id string) {
	c.mu.Lock()
	delete(c.m, id)
	c.mu.Unlock()
}
