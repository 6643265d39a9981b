package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresTarget(t *testing.T) {
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "BASE_URL") {
		t.Fatalf("expected BASE_URL error, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WATCHSIM__BASE_URL", "http://localhost:8082")
	t.Setenv("WATCHSIM__TOKEN", "tok")
	t.Setenv("WATCHSIM__CONTENT_ITEM_ID", "lesson-1")
	t.Setenv("WATCHSIM__VIEWERS", "25")
	t.Setenv("WATCHSIM__EXIT", "unload")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Viewers != 25 || cfg.Exit != "unload" || cfg.WatchFor != time.Minute {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_RejectsUnknownExit(t *testing.T) {
	t.Setenv("WATCHSIM__BASE_URL", "http://localhost:8082")
	t.Setenv("WATCHSIM__TOKEN", "tok")
	t.Setenv("WATCHSIM__CONTENT_ITEM_ID", "lesson-1")
	t.Setenv("WATCHSIM__EXIT", "crash")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
