package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NonexistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load with nonexistent file should not error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default host: expected 127.0.0.1, got %q", cfg.Server.Host)
	}
	if cfg.Server.BasePort != 4173 {
		t.Errorf("default basePort: expected 4173, got %d", cfg.Server.BasePort)
	}
	if cfg.Backoff.Base() != 2*time.Second {
		t.Errorf("default backoff base: expected 2s, got %v", cfg.Backoff.Base())
	}
	if cfg.Backoff.Max() != 15*time.Second {
		t.Errorf("default backoff max: expected 15s, got %v", cfg.Backoff.Max())
	}
	if cfg.Backoff.MaxCrashRestarts != 5 {
		t.Errorf("default maxCrashRestarts: expected 5, got %d", cfg.Backoff.MaxCrashRestarts)
	}
	if cfg.Health.Interval() != 15*time.Second {
		t.Errorf("default health interval: expected 15s, got %v", cfg.Health.Interval())
	}
	if cfg.Health.Timeout() != 10*time.Second {
		t.Errorf("default health timeout: expected 10s, got %v", cfg.Health.Timeout())
	}
	if cfg.Validation.MaxAttempts != 3 {
		t.Errorf("default validation maxAttempts: expected 3, got %d", cfg.Validation.MaxAttempts)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  host: "127.0.0.1"
  basePort: 5000
backoff:
  baseMs: 100
  maxMs: 1000
  maxCrashRestarts: 2
health:
  intervalMs: 5000
  timeoutMs: 2000
validation:
  maxAttempts: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.BasePort != 5000 {
		t.Errorf("basePort: expected 5000, got %d", cfg.Server.BasePort)
	}
	if cfg.Backoff.BaseMs != 100 || cfg.Backoff.MaxMs != 1000 {
		t.Errorf("backoff: expected 100/1000, got %d/%d", cfg.Backoff.BaseMs, cfg.Backoff.MaxMs)
	}
	if cfg.Backoff.MaxCrashRestarts != 2 {
		t.Errorf("maxCrashRestarts: expected 2, got %d", cfg.Backoff.MaxCrashRestarts)
	}
	if cfg.Health.IntervalMs != 5000 || cfg.Health.TimeoutMs != 2000 {
		t.Errorf("health: expected 5000/2000, got %d/%d", cfg.Health.IntervalMs, cfg.Health.TimeoutMs)
	}
	if cfg.Validation.MaxAttempts != 5 {
		t.Errorf("validation.maxAttempts: expected 5, got %d", cfg.Validation.MaxAttempts)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  basePort: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.BasePort != 9090 {
		t.Errorf("basePort: expected 9090, got %d", cfg.Server.BasePort)
	}
	// Host should retain default since only basePort was overridden.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host should be default 127.0.0.1, got %q", cfg.Server.Host)
	}
	// Backoff left entirely unset in YAML should retain defaults too.
	if cfg.Backoff.MaxCrashRestarts != 5 {
		t.Errorf("maxCrashRestarts should be default 5, got %d", cfg.Backoff.MaxCrashRestarts)
	}
}

func TestValidate(t *testing.T) {
	valid := *applyDefaults()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty host", func(c *Config) { c.Server.Host = "" }, true},
		{"port 0", func(c *Config) { c.Server.BasePort = 0 }, true},
		{"port too high", func(c *Config) { c.Server.BasePort = 70000 }, true},
		{"zero backoff base", func(c *Config) { c.Backoff.BaseMs = 0 }, true},
		{"max below base", func(c *Config) { c.Backoff.MaxMs = 1; c.Backoff.BaseMs = 100 }, true},
		{"negative maxCrashRestarts", func(c *Config) { c.Backoff.MaxCrashRestarts = -1 }, true},
		{"zero health interval", func(c *Config) { c.Health.IntervalMs = 0 }, true},
		{"zero health timeout", func(c *Config) { c.Health.TimeoutMs = 0 }, true},
		{"zero validation attempts", func(c *Config) { c.Validation.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := validate(&cfg)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWriteDefault_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}

	if cfg.Server.BasePort != 4173 {
		t.Errorf("roundtrip basePort: expected 4173, got %d", cfg.Server.BasePort)
	}
	if cfg.Validation.MaxAttempts != 3 {
		t.Errorf("roundtrip validation.maxAttempts: expected 3, got %d", cfg.Validation.MaxAttempts)
	}
}
