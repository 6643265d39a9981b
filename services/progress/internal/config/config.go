package config

import (
	"time"

	"github.com/example/membership-portal/internal/platform/config"
)

// Config is the progress-specific section. Env keys nest with "__", e.g.
// PROGRESS__HEARTBEAT_INTERVAL=45s or CATALOG__BASE_URL=http://catalog:8080.
type Config struct {
	Auth     AuthConfig     `koanf:"auth"`
	Progress ProgressConfig `koanf:"progress"`
	Catalog  CatalogConfig  `koanf:"catalog"`
}

type AuthConfig struct {
	JWTSecret     string `koanf:"jwt_secret" validate:"required"`
	JWTIssuer     string `koanf:"jwt_issuer"`
	SessionCookie string `koanf:"session_cookie"`
}

type ProgressConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`
	// AsyncWrites queues beacon writes on JetStream when NATS is reachable.
	AsyncWrites     bool          `koanf:"async_writes"`
	SyncRateLimit   int           `koanf:"sync_rate_limit" validate:"gt=0"`
	SyncRateWindow  time.Duration `koanf:"sync_rate_window" validate:"gt=0"`
	WorkerBatchSize int           `koanf:"worker_batch_size" validate:"gt=0,lte=1000"`
	WorkerMaxWait   time.Duration `koanf:"worker_max_wait" validate:"gt=0"`
}

type CatalogConfig struct {
	// BaseURL empty disables the duration lookup.
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	InternalToken string        `koanf:"internal_token"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

func Defaults() Config {
	return Config{
		Auth: AuthConfig{SessionCookie: "__session"},
		Progress: ProgressConfig{
			HeartbeatInterval: 30 * time.Second,
			AsyncWrites:       true,
			SyncRateLimit:     120,
			SyncRateWindow:    time.Minute,
			WorkerBatchSize:   100,
			WorkerMaxWait:     2 * time.Second,
		},
		Catalog: CatalogConfig{
			Timeout:  2 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
	}
}

func Load() (Config, error) {
	var cfg Config
	err := config.LoadInto(&cfg, Defaults())
	return cfg, err
}
