package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the JSON logger for a portal service. Every entry carries a
// "service" field set to service (omitted when empty), so logs from all
// services can share one index. Unknown levels fall back to info.
func New(level string, service string) (*zap.Logger, error) {
	return newConfig(level, service).Build()
}

func newConfig(level, service string) zap.Config {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	if service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}
	return cfg
}
