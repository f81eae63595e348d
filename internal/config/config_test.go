package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("myapp", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected default workers=4, got %d", cfg.Workers)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("expected default poll_interval=1s, got %v", cfg.PollInterval)
	}
	if cfg.CleanupRetention != 24*time.Hour {
		t.Errorf("expected default cleanup_retention=24h, got %v", cfg.CleanupRetention)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "workers: 8\nallowed_hosts:\n  - api.example.com\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("myapp", path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers=8 from yaml, got %d", cfg.Workers)
	}
	if len(cfg.AllowedHosts) != 1 || cfg.AllowedHosts[0] != "api.example.com" {
		t.Errorf("expected allowed_hosts from yaml, got %v", cfg.AllowedHosts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SYFTBOX_WORKERS", "16")
	cfg, err := Load("myapp", "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 16 {
		t.Errorf("expected workers=16 from env, got %d", cfg.Workers)
	}
}
