package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SERVICE_NAME") {
		t.Fatalf("expected SERVICE_NAME error, got %v", err)
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("SERVICE_NAME", "progress")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development by default")
	}
}

type nested struct {
	Progress struct {
		HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
		AsyncWrites       bool          `koanf:"async_writes"`
	} `koanf:"progress"`
}

func TestLoadInto_NestedEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("progress:\n  async_writes: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(PathEnvVar, path)
	t.Setenv("PROGRESS__HEARTBEAT_INTERVAL", "45s")

	var defaults nested
	defaults.Progress.HeartbeatInterval = 30 * time.Second

	var cfg nested
	if err := LoadInto(&cfg, defaults); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Progress.HeartbeatInterval != 45*time.Second {
		t.Fatalf("expected 45s from env, got %s", cfg.Progress.HeartbeatInterval)
	}
	if !cfg.Progress.AsyncWrites {
		t.Fatal("expected async_writes from file")
	}
}

func TestLoadService_DefaultsServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "unset")
	os.Unsetenv("SERVICE_NAME")
	cfg, err := LoadService("catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "catalog" {
		t.Fatalf("expected catalog, got %q", cfg.ServiceName)
	}
}
