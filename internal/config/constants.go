package config

import "time"

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./socialhub.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultPageSize     = 20
	DefaultFetchTimeout = 30 * time.Second
	DefaultSyncInterval = 15 * time.Minute
	DefaultMaxSyncPages = 5

	DefaultRetentionDays = 30 // Days to keep unbookmarked posts before purging

	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 2 * time.Second
	DefaultMaxBackoff  = 60 * time.Second

	DefaultDemoSeed = 1

	DefaultLogLevel = "debug"
)
