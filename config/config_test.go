package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, BackendHTTP, cfg.Backend)
	assert.Equal(t, "https://tez.yok.gov.tr", cfg.PortalBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Second, cfg.ThrottleInterval)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, int32(3600), cfg.CacheTTL)
	assert.Equal(t, "theses", cfg.RedisStreamPrefix)
	assert.Equal(t, 30*time.Minute, cfg.WatchInterval)
	assert.Nil(t, cfg.WatchQueries)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TEZ_BACKEND", "browser")
	t.Setenv("BROWSER_ADDR", "http://localhost:3000")
	t.Setenv("THROTTLE_INTERVAL_MS", "250")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("WATCH_QUERIES", "derin öğrenme, yapay zeka ,")

	cfg := Load()

	assert.Equal(t, BackendBrowser, cfg.Backend)
	assert.Equal(t, "http://localhost:3000", cfg.BrowserAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.ThrottleInterval)
	assert.Equal(t, int32(120), cfg.CacheTTL)
	assert.Equal(t, []string{"derin öğrenme", "yapay zeka"}, cfg.WatchQueries)
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("THROTTLE_INTERVAL_MS", "fast")
	cfg := Load()
	assert.Equal(t, time.Second, cfg.ThrottleInterval)
}

func TestValidateDefaultsPass(t *testing.T) {
	require.NoError(t, Load().Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Load()
	cfg.Backend = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestValidateBrowserRequiresAddr(t *testing.T) {
	cfg := Load()
	cfg.Backend = BackendBrowser
	cfg.BrowserAddr = ""
	assert.Error(t, cfg.Validate())

	cfg.BrowserAddr = "http://localhost:3000"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownCacheBackend(t *testing.T) {
	cfg := Load()
	cfg.CacheBackend = "disk"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadNumbers(t *testing.T) {
	cfg := Load()
	cfg.ThrottleInterval = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.CacheTTL = 0
	assert.Error(t, cfg.Validate())
}
