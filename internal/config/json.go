package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mbelkin/cardsync/internal/flagx"
	"github.com/mbelkin/cardsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabaseDSN         string         `json:"database_dsn"`
	RemoteBaseURL       string         `json:"remote_base_url"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	PageSize            int            `json:"page_size"`
	SyncMaxAttempts     uint64         `json:"sync_max_attempts"`
	SyncBackoffBase     timex.Duration `json:"sync_backoff_base"`
	SyncBackoffCap      timex.Duration `json:"sync_backoff_cap"`
	RetentionDays       int            `json:"retention_days"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Zero-valued JSON fields leave the corresponding Config field untouched,
// so a partial file overrides only what it names.
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

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.RemoteBaseURL != "" {
		cfg.RemoteBaseURL = jc.RemoteBaseURL
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.PageSize > 0 {
		cfg.PageSize = jc.PageSize
	}
	if jc.SyncMaxAttempts > 0 {
		cfg.SyncMaxAttempts = jc.SyncMaxAttempts
	}
	if jc.SyncBackoffBase.Duration != 0 {
		cfg.SyncBackoffBase = time.Duration(jc.SyncBackoffBase.Duration)
	}
	if jc.SyncBackoffCap.Duration != 0 {
		cfg.SyncBackoffCap = time.Duration(jc.SyncBackoffCap.Duration)
	}
	if jc.RetentionDays > 0 {
		cfg.RetentionDays = jc.RetentionDays
	}
}
