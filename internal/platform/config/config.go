package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/example/membership-portal/internal/platform/validate"
)

// PathEnvVar points at an optional YAML file layered between defaults and env.
const PathEnvVar = "CONFIG_PATH"

type AppConfig struct {
	ServiceName string `koanf:"service_name" validate:"required"`
	LogLevel    string `koanf:"log_level"`
	AppEnv      string `koanf:"app_env"`
	HTTPAddr    string `koanf:"http_addr" validate:"required"`
	DatabaseURL string `koanf:"database_url"`
	NATSURL     string `koanf:"nats_url"`
	RedisDSN    string `koanf:"redis_dsn"`
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func Load() (AppConfig, error) {
	return LoadService("")
}

// LoadService is Load with service_name defaulting to name.
func LoadService(name string) (AppConfig, error) {
	var cfg AppConfig
	err := LoadInto(&cfg, AppConfig{
		ServiceName: name,
		LogLevel:    "info",
		AppEnv:      "development",
		HTTPAddr:    ":8080",
	})
	return cfg, err
}

// LoadInto layers defaults, the optional CONFIG_PATH file and the environment
// into dst, then validates it. Env keys are lower-cased and "__" nests, so
// PROGRESS__HEARTBEAT_INTERVAL sets progress.heartbeat_interval.
func LoadInto(dst any, defaults any) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv(PathEnvVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	if err := k.Unmarshal("", dst); err != nil {
		return fmt.Errorf("config unmarshal: %w", err)
	}
	if errs := validate.Struct(dst); errs != nil {
		return validationError(errs)
	}
	return nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func validationError(errs map[string]string) error {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, strings.ToUpper(k)+" "+errs[k])
	}
	return errors.New("invalid config: " + strings.Join(parts, "; "))
}
