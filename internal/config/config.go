// Package config handles loading, validating, and writing the explorerd
// engine configuration from <local-dir>/config.yaml (default
// ~/.explorerd/config.yaml).
//
// The config defines:
//   - Crash-restart backoff schedule and cap
//   - Health watchdog interval/timeout
//   - Diagram validation attempt cap
//   - HTTP server base port
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level explorerd engine configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	Health     HealthConfig     `yaml:"health"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig defines where the engine's HTTP/WebSocket server listens.
// Host is always loopback; the engine probes basePort..basePort+10 when
// the base port is already in use.
type ServerConfig struct {
	Host     string `yaml:"host"`
	BasePort int    `yaml:"basePort"`
}

// BackoffConfig controls crash-restart scheduling: delay(k) =
// min(base*2^(k-1), max), up to maxCrashRestarts attempts.
type BackoffConfig struct {
	BaseMs           int `yaml:"baseMs"`
	MaxMs            int `yaml:"maxMs"`
	MaxCrashRestarts int `yaml:"maxCrashRestarts"`
}

// Base returns the backoff base delay as a time.Duration.
func (b BackoffConfig) Base() time.Duration { return time.Duration(b.BaseMs) * time.Millisecond }

// Max returns the backoff cap as a time.Duration.
func (b BackoffConfig) Max() time.Duration { return time.Duration(b.MaxMs) * time.Millisecond }

// HealthConfig controls the agent-activity watchdog: on an interval, if no
// agent event has arrived within the timeout while streaming, the engine
// counts a health failure.
type HealthConfig struct {
	IntervalMs int `yaml:"intervalMs"`
	TimeoutMs  int `yaml:"timeoutMs"`
}

// Interval returns the watchdog tick period as a time.Duration.
func (h HealthConfig) Interval() time.Duration { return time.Duration(h.IntervalMs) * time.Millisecond }

// Timeout returns the silence threshold as a time.Duration.
func (h HealthConfig) Timeout() time.Duration { return time.Duration(h.TimeoutMs) * time.Millisecond }

// ValidationConfig bounds the mermaid diagram fix-loop.
type ValidationConfig struct {
	MaxAttempts int `yaml:"maxAttempts"`
}

// Load reads and parses config.yaml from the given path.
// If the file doesn't exist, returns defaults (not an error).
// Invalid YAML or validation failures return an error.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet — use defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes a default config.yaml with all fields populated and a
// comment header. Load does not call it: a missing file yields in-memory
// defaults and nothing is written.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# explorerd engine configuration
#
# server:
#   host: bind address (always loopback)
#   basePort: first port tried; the engine probes up to 10 above it
#
# backoff:
#   baseMs/maxMs: crash-restart delay schedule, delay(k) = min(base*2^(k-1), max)
#   maxCrashRestarts: restart attempts before the engine gives up and fails
#
# health:
#   intervalMs: how often the watchdog checks for agent activity
#   timeoutMs: how long without an event before a health failure is counted
#
# validation:
#   maxAttempts: fix-loop attempts before a diagram is given up on

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// applyDefaults returns a Config with all fields set to their default values.
func applyDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			BasePort: 4173,
		},
		Backoff: BackoffConfig{
			BaseMs:           2000,
			MaxMs:            15000,
			MaxCrashRestarts: 5,
		},
		Health: HealthConfig{
			IntervalMs: 15000,
			TimeoutMs:  10000,
		},
		Validation: ValidationConfig{
			MaxAttempts: 3,
		},
	}
}

// validate checks the config for logical errors after parsing.
func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if ip := net.ParseIP(cfg.Server.Host); cfg.Server.Host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("server.host %q must be a loopback address", cfg.Server.Host)
	}
	if cfg.Server.BasePort < 1 || cfg.Server.BasePort > 65525 {
		return fmt.Errorf("server.basePort %d out of range (1-65525, leaving room for +10 probing)", cfg.Server.BasePort)
	}
	if cfg.Backoff.BaseMs <= 0 {
		return fmt.Errorf("backoff.baseMs must be positive")
	}
	if cfg.Backoff.MaxMs < cfg.Backoff.BaseMs {
		return fmt.Errorf("backoff.maxMs must be >= backoff.baseMs")
	}
	if cfg.Backoff.MaxCrashRestarts < 0 {
		return fmt.Errorf("backoff.maxCrashRestarts must be non-negative")
	}
	if cfg.Health.IntervalMs <= 0 {
		return fmt.Errorf("health.intervalMs must be positive")
	}
	if cfg.Health.TimeoutMs <= 0 {
		return fmt.Errorf("health.timeoutMs must be positive")
	}
	if cfg.Validation.MaxAttempts <= 0 {
		return fmt.Errorf("validation.maxAttempts must be positive")
	}

	return nil
}
