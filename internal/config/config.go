// Package config handles configuration for the cardsync CLI, including
// defaults, environment variables, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the cardsync client.
//
// Fields:
//   - DatabaseDSN: SQLite DSN for the local cache.
//   - RemoteBaseURL: base URL of the backend HTTP API.
//   - OnlineCheckInterval: how often the client probes backend reachability.
//   - PageSize: default page size for list views.
//   - SyncMaxAttempts: push attempts before a record is flagged conflicted.
//   - SyncBackoffBase / SyncBackoffCap: retry backoff shape for pushes.
//   - RetentionDays: age after which synced, untouched rows are evicted.
type Config struct {
	DatabaseDSN         string
	RemoteBaseURL       string
	OnlineCheckInterval time.Duration
	PageSize            int
	SyncMaxAttempts     uint64
	SyncBackoffBase     time.Duration
	SyncBackoffCap      time.Duration
	RetentionDays       int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "file:cardsync.db"
	c.RemoteBaseURL = "http://127.0.0.1:8080"
	c.OnlineCheckInterval = 3 * time.Second
	c.PageSize = 20
	c.SyncMaxAttempts = 5
	c.SyncBackoffBase = 500 * time.Millisecond
	c.SyncBackoffCap = 30 * time.Second
	c.RetentionDays = 90
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, JSON (if present) and command-line flags (if
// present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
