package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Feed settings
	PageSize      int
	FetchTimeout  time.Duration
	SyncInterval  time.Duration
	MaxSyncPages  int
	RetentionDays int

	// Interaction dispatch settings
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// RSS adapter feed URLs
	RSSFeedURLs []string

	// Demo adapter seed; same seed, same generated feed
	DemoSeed int64

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:        DefaultDBPath,
		ServerHost:    DefaultServerHost,
		ServerPort:    DefaultServerPort,
		APIKey:        GetEnvString("SOCIALHUB_API_KEY", ""),
		PageSize:      DefaultPageSize,
		FetchTimeout:  DefaultFetchTimeout,
		SyncInterval:  DefaultSyncInterval,
		MaxSyncPages:  DefaultMaxSyncPages,
		RetentionDays: DefaultRetentionDays,
		MaxAttempts:   DefaultMaxAttempts,
		BaseBackoff:   DefaultBaseBackoff,
		MaxBackoff:    DefaultMaxBackoff,
		DemoSeed:      DefaultDemoSeed,
		LogLevel:      logLevel,
	}
}

// FromEnv returns the default configuration overridden by environment
// variables.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.DBPath = GetEnvString("SOCIALHUB_DB_PATH", cfg.DBPath)
	cfg.ServerHost = GetEnvString("SOCIALHUB_SERVER_HOST", cfg.ServerHost)
	cfg.ServerPort = GetEnvInt("SOCIALHUB_SERVER_PORT", cfg.ServerPort)
	cfg.PageSize = GetEnvInt("SOCIALHUB_PAGE_SIZE", cfg.PageSize)
	cfg.FetchTimeout = GetEnvDuration("SOCIALHUB_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.SyncInterval = GetEnvDuration("SOCIALHUB_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.MaxSyncPages = GetEnvInt("SOCIALHUB_MAX_SYNC_PAGES", cfg.MaxSyncPages)
	cfg.RetentionDays = GetEnvInt("SOCIALHUB_RETENTION_DAYS", cfg.RetentionDays)
	cfg.MaxAttempts = GetEnvInt("SOCIALHUB_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BaseBackoff = GetEnvDuration("SOCIALHUB_BASE_BACKOFF", cfg.BaseBackoff)
	cfg.MaxBackoff = GetEnvDuration("SOCIALHUB_MAX_BACKOFF", cfg.MaxBackoff)
	cfg.DemoSeed = int64(GetEnvInt("SOCIALHUB_DEMO_SEED", int(cfg.DemoSeed)))
	cfg.LogLevel = GetEnvLogLevel("SOCIALHUB_LOG_LEVEL", cfg.LogLevel)

	cfg.RSSFeedURLs = GetEnvStringSlice("SOCIALHUB_RSS_FEEDS", cfg.RSSFeedURLs)
	return cfg
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BaseBackoff > c.MaxBackoff {
		return fmt.Errorf("base backoff %s exceeds max backoff %s", c.BaseBackoff, c.MaxBackoff)
	}
	return nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
