package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "file:cardsync.db", c.DatabaseDSN)
	assert.Equal(t, "http://127.0.0.1:8080", c.RemoteBaseURL)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 20, c.PageSize)
	assert.Equal(t, uint64(5), c.SyncMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, c.SyncBackoffBase)
	assert.Equal(t, 30*time.Second, c.SyncBackoffCap)
	assert.Equal(t, 90, c.RetentionDays)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "file:cardsync.db", cfg.DatabaseDSN)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseEnv_Overlays(t *testing.T) {
	t.Setenv("CARDSYNC_DATABASE_DSN", "file:other.db")
	t.Setenv("CARDSYNC_ONLINE_CHECK_INTERVAL", "10s")
	t.Setenv("CARDSYNC_PAGE_SIZE", "50")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "file:other.db", c.DatabaseDSN)
	assert.Equal(t, 10*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 50, c.PageSize)
	assert.Equal(t, "http://127.0.0.1:8080", c.RemoteBaseURL, "unset variables leave defaults alone")
}

func TestParseEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("CARDSYNC_ONLINE_CHECK_INTERVAL", "not-a-duration")
	t.Setenv("CARDSYNC_PAGE_SIZE", "-3")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 20, c.PageSize)
}
