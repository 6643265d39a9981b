package config

import (
	"time"

	"github.com/example/membership-portal/internal/platform/config"
)

// Config is the analytics consumer section, e.g. CONSUMER__BATCH_SIZE=500.
type Config struct {
	Consumer ConsumerConfig `koanf:"consumer"`
}

type ConsumerConfig struct {
	BatchSize int           `koanf:"batch_size" validate:"gt=0,lte=1000"`
	MaxWait   time.Duration `koanf:"max_wait" validate:"gt=0"`
}

func Defaults() Config {
	return Config{Consumer: ConsumerConfig{
		BatchSize: 200,
		MaxWait:   2 * time.Second,
	}}
}

func Load() (Config, error) {
	var cfg Config
	err := config.LoadInto(&cfg, Defaults())
	return cfg, err
}
