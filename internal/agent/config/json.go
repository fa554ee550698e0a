package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/wearsync/internal/flagx"
	"github.com/dmitrijs2005/wearsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. Zero values mean "not set" and keep the
// previously loaded value.
type JsonConfig struct {
	Endpoint        string         `json:"endpoint"`
	DatabaseDSN     string         `json:"database_dsn"`
	SettingsPath    string         `json:"settings_path"`
	PollInterval    timex.Duration `json:"poll_interval"`
	SyncInterval    timex.Duration `json:"sync_interval"`
	PrimaryTimeout  timex.Duration `json:"primary_timeout"`
	FallbackTimeout timex.Duration `json:"fallback_timeout"`
	MaxUnitSize     int            `json:"max_unit_size"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c or -config flags; when absent nothing is loaded.
// Read or unmarshal errors panic (caller may recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.Endpoint != "" {
		cfg.Endpoint = jc.Endpoint
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SettingsPath != "" {
		cfg.SettingsPath = jc.SettingsPath
	}
	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.PrimaryTimeout.Duration > 0 {
		cfg.PrimaryTimeout = jc.PrimaryTimeout.Duration
	}
	if jc.FallbackTimeout.Duration > 0 {
		cfg.FallbackTimeout = jc.FallbackTimeout.Duration
	}
	if jc.MaxUnitSize > 0 {
		cfg.MaxUnitSize = jc.MaxUnitSize
	}
}
