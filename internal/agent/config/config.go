// Package config loads runtime settings for the sync agent.
package config

import "time"

// Config holds runtime settings for the WearSync agent.
//
// Fields:
//   - Endpoint: base URL of the primary sync endpoint.
//   - DatabaseDSN: path of the local SQLite record store.
//   - SettingsPath: path of the persisted identity/settings file.
//   - PollInterval: how often the agent probes primary reachability.
//   - SyncInterval: how often the agent attempts a sync on its own.
//   - PrimaryTimeout: bound on every probe and submit request.
//   - FallbackTimeout: overall bound on one fallback transfer attempt.
//   - MaxUnitSize: largest packet payload on the fallback link, in bytes.
type Config struct {
	Endpoint        string
	DatabaseDSN     string
	SettingsPath    string
	PollInterval    time.Duration
	SyncInterval    time.Duration
	PrimaryTimeout  time.Duration
	FallbackTimeout time.Duration
	MaxUnitSize     int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Endpoint = "http://127.0.0.1:8080"
	c.DatabaseDSN = "wearsync.db"
	c.SettingsPath = "wearsync.json"
	c.PollInterval = 30 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.PrimaryTimeout = 5 * time.Second
	c.FallbackTimeout = 60 * time.Second
	c.MaxUnitSize = 512
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
