package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewConfig_ServiceField(t *testing.T) {
	cfg := newConfig("debug", "progress")
	if got := cfg.InitialFields["service"]; got != "progress" {
		t.Fatalf("expected service=progress, got %v", got)
	}
	if cfg.Level.Level() != zapcore.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.Level.Level())
	}
	if cfg.EncoderConfig.TimeKey != "ts" || cfg.Encoding != "json" {
		t.Fatalf("unexpected encoder: %s/%s", cfg.Encoding, cfg.EncoderConfig.TimeKey)
	}
}

func TestNewConfig_NoServiceAndUnknownLevel(t *testing.T) {
	cfg := newConfig(" LOUD ", "")
	if _, ok := cfg.InitialFields["service"]; ok {
		t.Fatal("service field should be omitted when empty")
	}
	if cfg.Level.Level() != zapcore.InfoLevel {
		t.Fatalf("expected info fallback, got %s", cfg.Level.Level())
	}
}

func TestNew_Builds(t *testing.T) {
	log, err := New("warn", "catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn")
	}
}
