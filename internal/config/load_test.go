package config

import (
	"strings"
	"testing"
)

func TestParseYAML(t *testing.T) {
	raw := `
logging:
  level: debug
storage:
  driver: sqlite
  path: ./state.db
  busy_timeout: 5s
scheduler:
  fast_tick: 15s
  spawn_tick: 5m
  ambient_cap: 3
  skip_chance: 0.25
catalog: ./catalog.yaml
`
	cfg, err := Parse("config.yaml", []byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Scheduler.AmbientCap != 3 {
		t.Errorf("ambient_cap = %d", cfg.Scheduler.AmbientCap)
	}
	if got := cfg.Scheduler.SkipChanceOrDefault(); got != 0.25 {
		t.Errorf("skip_chance = %v", got)
	}
	if cfg.Catalog != "./catalog.yaml" {
		t.Errorf("catalog = %q", cfg.Catalog)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	raw := `
scheduler:
  fast_tick: 30s
  turbo_mode: true
`
	_, err := Parse("config.yaml", []byte(raw))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "turbo_mode") {
		t.Fatalf("error should name the unknown field, got: %v", err)
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	raw := `
scheduler:
  fast_tick: soon
`
	if _, err := Parse("config.yaml", []byte(raw)); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestParseRejectsSkipChanceOutOfRange(t *testing.T) {
	raw := `
scheduler:
  skip_chance: 1.5
`
	if _, err := Parse("config.yaml", []byte(raw)); err == nil {
		t.Fatal("expected error for skip_chance > 1")
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse("config.yaml", []byte("{}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Logging.ConsoleEnabled() {
		t.Error("console should default to enabled")
	}
	if got := cfg.Scheduler.SkipChanceOrDefault(); got != 0.5 {
		t.Errorf("skip_chance default = %v, want 0.5", got)
	}
}
