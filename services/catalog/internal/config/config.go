package config

import (
	"time"

	"github.com/example/membership-portal/internal/platform/config"
)

type Config struct {
	Auth     AuthConfig   `koanf:"auth"`
	Internal Internal     `koanf:"internal"`
	Mux      MuxConfig    `koanf:"mux"`
	Outbox   OutboxConfig `koanf:"outbox"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required"`
	JWTIssuer string `koanf:"jwt_issuer"`
}

// Internal holds the shared secret other portal services present on /internal routes.
type Internal struct {
	Token string `koanf:"token" validate:"required"`
}

// MuxConfig configures signed playback. An empty signing key disables the playback route.
type MuxConfig struct {
	SigningKeyID string        `koanf:"signing_key_id" validate:"required_with=SigningKey"`
	SigningKey   string        `koanf:"signing_key"`
	TokenTTL     time.Duration `koanf:"token_ttl" validate:"gt=0"`
	StreamBase   string        `koanf:"stream_base" validate:"omitempty,url"`
}

type OutboxConfig struct {
	BatchSize    int           `koanf:"batch_size" validate:"gt=0,lte=1000"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
}

func Defaults() Config {
	return Config{
		Mux: MuxConfig{
			TokenTTL:   6 * time.Hour,
			StreamBase: "https://stream.mux.com",
		},
		Outbox: OutboxConfig{BatchSize: 100, PollInterval: 2 * time.Second},
	}
}

func Load() (Config, error) {
	var cfg Config
	err := config.LoadInto(&cfg, Defaults())
	return cfg, err
}
