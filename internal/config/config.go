// Package config holds the bridge configuration: where the remote-script
// gateway listens, how patient device-load polling is, and where traces and
// logs go. Values come from an optional JSON file overridden by environment
// variables, so an MCP host can tune the bridge without a config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variable names recognized by FromEnv.
const (
	EnvGatewayHost    = "ABLETON_GATEWAY_HOST"
	EnvGatewayPort    = "ABLETON_GATEWAY_PORT"
	EnvGatewayTimeout = "ABLETON_GATEWAY_TIMEOUT_MS"
	EnvPollAttempts   = "ABLETON_POLL_ATTEMPTS"
	EnvPollInterval   = "ABLETON_POLL_INTERVAL_MS"
	EnvTraceDBPath    = "ABLETON_TRACE_DB"
	EnvLogLevel       = "ABLETON_LOG_LEVEL"
)

// Config is the full bridge configuration.
type Config struct {
	GatewayHost      string `json:"gateway_host"`
	GatewayPort      int    `json:"gateway_port"`
	GatewayTimeoutMS int    `json:"gateway_timeout_ms"`
	PollAttempts     int    `json:"poll_attempts"`
	PollIntervalMS   int    `json:"poll_interval_ms"`
	TraceDBPath      string `json:"trace_db_path"`
	LogLevel         string `json:"log_level"`
}

// Default returns the configuration used when nothing overrides it. The
// gateway endpoint matches the remote script's listener.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		GatewayHost:      "127.0.0.1",
		GatewayPort:      8001,
		GatewayTimeoutMS: 3000,
		PollAttempts:     20,
		PollIntervalMS:   50,
		TraceDBPath:      filepath.Join(home, ".ableton-mcp", "traces.db"),
		LogLevel:         "info",
	}
}

// GatewayTimeout returns the gateway request timeout as a duration.
func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutMS) * time.Millisecond
}

// PollInterval returns the device-load polling interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Validate rejects configurations the bridge cannot run with.
func (c Config) Validate() error {
	if c.GatewayHost == "" {
		return fmt.Errorf("config: gateway_host must not be empty")
	}
	if c.GatewayPort <= 0 || c.GatewayPort > 65535 {
		return fmt.Errorf("config: gateway_port %d out of range", c.GatewayPort)
	}
	if c.GatewayTimeoutMS <= 0 {
		return fmt.Errorf("config: gateway_timeout_ms must be positive")
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("config: poll_attempts must be positive")
	}
	if c.PollIntervalMS < 0 {
		return fmt.Errorf("config: poll_interval_ms must not be negative")
	}
	return nil
}

// Load builds the effective configuration: defaults, then the JSON file at
// path (skipped when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file.
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv overlays environment variables onto base. Unset or malformed
// numeric variables leave the base value untouched.
func FromEnv(base Config) Config {
	if v := os.Getenv(EnvGatewayHost); v != "" {
		base.GatewayHost = v
	}
	if v, ok := envInt(EnvGatewayPort); ok {
		base.GatewayPort = v
	}
	if v, ok := envInt(EnvGatewayTimeout); ok {
		base.GatewayTimeoutMS = v
	}
	if v, ok := envInt(EnvPollAttempts); ok {
		base.PollAttempts = v
	}
	if v, ok := envInt(EnvPollInterval); ok {
		base.PollIntervalMS = v
	}
	if v := os.Getenv(EnvTraceDBPath); v != "" {
		base.TraceDBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		base.LogLevel = v
	}
	return base
}

// Save writes the configuration as indented JSON, creating parent
// directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
