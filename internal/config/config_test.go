package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: localhost:6379
challenge:
  duration: 45m
client:
  api_url: http://localhost:9090
  max_retries: 2
admin:
  secret: hunter2
scoring:
  verify: true
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Client.MaxRetries != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Scoring.Verify || cfg.Admin.Secret != "hunter2" {
		t.Fatalf("unexpected admin/scoring config %+v", cfg)
	}
	if got := TTLDuration(cfg.Challenge.Duration, time.Minute); got != 45*time.Minute {
		t.Fatalf("expected 45m, got %v", got)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Server.Port != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", 5*time.Second); got != 5*time.Second {
		t.Fatalf("expected fallback for empty value, got %v", got)
	}
	if got := TTLDuration("soon", 5*time.Second); got != 5*time.Second {
		t.Fatalf("expected fallback for junk value, got %v", got)
	}
}
