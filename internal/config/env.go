package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with CARDSYNC_* environment variables. A .env
// file in the working directory is loaded first, without overriding
// variables already present in the process environment.
//
// Recognized variables:
//
//	CARDSYNC_DATABASE_DSN            string
//	CARDSYNC_REMOTE_BASE_URL         string
//	CARDSYNC_ONLINE_CHECK_INTERVAL   duration, e.g. "3s"
//	CARDSYNC_PAGE_SIZE               int
func parseEnv(cfg *Config) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("CARDSYNC_DATABASE_DSN"); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("CARDSYNC_REMOTE_BASE_URL"); ok {
		cfg.RemoteBaseURL = v
	}
	if v, ok := os.LookupEnv("CARDSYNC_ONLINE_CHECK_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OnlineCheckInterval = d
		}
	}
	if v, ok := os.LookupEnv("CARDSYNC_PAGE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
}
