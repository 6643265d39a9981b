package config

import (
	"time"

	"github.com/example/membership-portal/internal/platform/config"
)

// Config is the provisioning section, e.g. GHL__WEBHOOK_SECRET or GHL__MEMBERSHIP_TAG.
type Config struct {
	GHL         GHLConfig         `koanf:"ghl"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
}

type GHLConfig struct {
	WebhookSecret string `koanf:"webhook_secret" validate:"required"`
	// MembershipTag marks contacts that should have portal access.
	MembershipTag string        `koanf:"membership_tag" validate:"required"`
	Tolerance     time.Duration `koanf:"tolerance" validate:"gte=0"`
}

type IdempotencyConfig struct {
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`
}

func Defaults() Config {
	return Config{
		GHL:         GHLConfig{MembershipTag: "member", Tolerance: 5 * time.Minute},
		Idempotency: IdempotencyConfig{TTL: 72 * time.Hour},
	}
}

func Load() (Config, error) {
	var cfg Config
	err := config.LoadInto(&cfg, Defaults())
	return cfg, err
}
