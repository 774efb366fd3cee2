package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"yoktez/tezworker/pkg/errors"
)

// Backend names selectable through TEZ_BACKEND.
const (
	BackendHTTP    = "http"
	BackendBrowser = "browser"
)

// Cache backend names selectable through CACHE_BACKEND.
const (
	CacheMemory   = "memory"
	CacheMemcache = "memcache"
)

// Config holds every runtime setting, loaded from the environment.
type Config struct {
	Environment string

	Backend       string
	BrowserAddr   string
	PortalBaseURL string

	RequestTimeout   time.Duration
	ThrottleInterval time.Duration
	MaxAttempts      int

	CacheBackend string
	CacheTTL     int32
	MemcacheAddr string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisStreamPrefix string
	RedisStreamShards int
	RedisStreamMaxLen int64

	WatchQueries  []string
	WatchInterval time.Duration

	MetricsAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Environment: getEnv("TEZ_ENVIRONMENT", "development"),

		Backend:       getEnv("TEZ_BACKEND", BackendHTTP),
		BrowserAddr:   getEnv("BROWSER_ADDR", ""),
		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://tez.yok.gov.tr"),

		RequestTimeout:   time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		ThrottleInterval: time.Duration(getEnvAsInt("THROTTLE_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxAttempts:      getEnvAsInt("MAX_ATTEMPTS", 3),

		CacheBackend: getEnv("CACHE_BACKEND", CacheMemory),
		CacheTTL:     int32(getEnvAsInt("CACHE_TTL_SECONDS", 3600)),
		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),

		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		RedisStreamPrefix: getEnv("REDIS_STREAM_PREFIX", "theses"),
		RedisStreamShards: getEnvAsInt("REDIS_STREAM_SHARDS", 1),
		RedisStreamMaxLen: int64(getEnvAsInt("REDIS_STREAM_MAXLEN", 500)),

		WatchQueries:  getEnvAsSlice("WATCH_QUERIES"),
		WatchInterval: time.Duration(getEnvAsInt("WATCH_INTERVAL_SECONDS", 1800)) * time.Second,

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

// Validate checks settings that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP:
	case BackendBrowser:
		if c.BrowserAddr == "" {
			return errors.NewConfiguration("BROWSER_ADDR is required for the browser backend", nil)
		}
	default:
		return errors.NewConfiguration(
			fmt.Sprintf("unknown backend %q, expected %s or %s", c.Backend, BackendHTTP, BackendBrowser), nil)
	}

	switch c.CacheBackend {
	case CacheMemory, CacheMemcache:
	default:
		return errors.NewConfiguration(
			fmt.Sprintf("unknown cache backend %q, expected %s or %s", c.CacheBackend, CacheMemory, CacheMemcache), nil)
	}

	if c.ThrottleInterval < 0 {
		return errors.NewConfiguration("THROTTLE_INTERVAL_MS must not be negative", nil)
	}
	if c.CacheTTL <= 0 {
		return errors.NewConfiguration("CACHE_TTL_SECONDS must be positive", nil)
	}
	if c.RequestTimeout <= 0 {
		return errors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.PortalBaseURL == "" {
		return errors.NewConfiguration("PORTAL_BASE_URL must not be empty", nil)
	}

	return nil
}

// IsProduction returns true in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma separated environment variable
func getEnvAsSlice(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			values = append(values, v)
		}
	}
	return values
}
