package config

import (
	"time"

	"github.com/example/membership-portal/internal/platform/config"
)

// Config drives a watch simulation. Env keys are WATCHSIM__*, e.g.
// WATCHSIM__BASE_URL=http://localhost:8082 WATCHSIM__VIEWERS=50.
type Config struct {
	Watchsim SimConfig `koanf:"watchsim"`
}

type SimConfig struct {
	BaseURL       string `koanf:"base_url" validate:"required,url"`
	Token         string `koanf:"token" validate:"required"`
	SessionCookie string `koanf:"session_cookie"`
	UserID        string `koanf:"user_id"`
	ContentItemID string `koanf:"content_item_id" validate:"required,max=256"`

	// DurationSeconds is the simulated media length. Zero leaves it unknown.
	DurationSeconds float64 `koanf:"duration_seconds" validate:"gte=0"`
	PlaybackRate    float64 `koanf:"playback_rate" validate:"gt=0,lte=16"`
	// TimeScale is media seconds per wall second at rate 1.
	TimeScale float64       `koanf:"time_scale" validate:"gt=0"`
	WatchFor  time.Duration `koanf:"watch_for" validate:"gt=0"`
	SeekEvery time.Duration `koanf:"seek_every" validate:"gte=0"`
	SeekBy    float64       `koanf:"seek_by"`
	// Exit is how each session ends: pause, stop or unload (tab closed).
	Exit string `koanf:"exit" validate:"oneof=pause stop unload"`

	Viewers       int     `koanf:"viewers" validate:"gt=0,lte=1000"`
	RampPerSecond float64 `koanf:"ramp_per_second" validate:"gt=0"`

	SampleInterval time.Duration `koanf:"sample_interval" validate:"gt=0"`
	ThrottleWindow time.Duration `koanf:"throttle_window" validate:"gt=0"`
	BeaconGrace    time.Duration `koanf:"beacon_grace" validate:"gte=0"`
}

func Defaults() Config {
	return Config{Watchsim: SimConfig{
		SessionCookie:  "__session",
		PlaybackRate:   1,
		TimeScale:      1,
		WatchFor:       time.Minute,
		Exit:           "pause",
		Viewers:        1,
		RampPerSecond:  5,
		SampleInterval: 5 * time.Second,
		ThrottleWindow: 10 * time.Second,
		BeaconGrace:    time.Second,
	}}
}

func Load() (SimConfig, error) {
	var cfg Config
	err := config.LoadInto(&cfg, Defaults())
	return cfg.Watchsim, err
}
