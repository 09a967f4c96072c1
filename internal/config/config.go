// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and environment variables.
// - External errors must be wrapped via this package's sentinel kinds.
package config

import "runtime"

// Store driver and cache backend identifiers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the durable score store: postgres or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the store connection string. For sqlite it is a file
	// path or ":memory:".
	StoreDSN string `koanf:"store_dsn"`

	// CacheBackend selects the leaderboard cache: memory or redis.
	CacheBackend string `koanf:"cache_backend"`

	// RedisAddr, RedisPassword and RedisDB configure the redis cache
	// backend; ignored when CacheBackend is memory.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// GameModes lists the game modes accepted by the submission pipeline.
	GameModes []string `koanf:"game_modes"`

	// DefaultPageSize applies when a leaderboard read omits limit.
	DefaultPageSize int `koanf:"default_page_size"`

	// MaxPageSize caps GET /leaderboard?limit.
	MaxPageSize int `koanf:"max_page_size"`

	// HistoryLimit caps user score history reads.
	HistoryLimit int `koanf:"history_limit"`

	// RebuildWorkers sets the number of cache rebuild workers.
	RebuildWorkers int `koanf:"rebuild_workers"`

	// RebuildQueueSize bounds the cache rebuild job queue.
	RebuildQueueSize int `koanf:"rebuild_queue_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		StoreDriver:      StoreSQLite,
		StoreDSN:         "scorekeep.db",
		CacheBackend:     CacheMemory,
		RedisAddr:        "localhost:6379",
		GameModes:        []string{"Survivor", "TimeAttack", "Endless"},
		DefaultPageSize:  100,
		MaxPageSize:      200,
		HistoryLimit:     100,
		RebuildWorkers:   runtime.NumCPU(),
		RebuildQueueSize: 64,
	}
}
