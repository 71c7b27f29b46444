// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() to build a Config with defaults.
//   - Every field carries a koanf key and, where it has constraints, a
//     validate rule checked by Validate.
//   - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/matchd/internal/domain/model"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects the profile/action/match store.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory postgres sqlite"`
	// StoreDSN is the SQL data source; unused by the memory driver.
	StoreDSN string `koanf:"store_dsn" validate:"required_unless=StoreDriver memory"`
	// StoreMigrate creates missing SQL tables on startup.
	StoreMigrate bool `koanf:"store_migrate"`

	// CacheBackend selects the recommendation cache.
	CacheBackend string `koanf:"cache_backend" validate:"oneof=memory redis"`
	// CacheShards is the shard count of the memory cache.
	CacheShards    int    `koanf:"cache_shards" validate:"min=1"`
	RedisAddr      string `koanf:"redis_addr" validate:"required_if=CacheBackend redis"`
	RedisDB        int    `koanf:"redis_db" validate:"min=0"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// CacheTTL applies to lists generated on demand, BatchCacheTTL to lists
	// generated by the daily regeneration.
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	BatchCacheTTL time.Duration `koanf:"batch_cache_ttl" validate:"gt=0"`

	// CandidatePoolLimit bounds how many candidates are scored per list.
	CandidatePoolLimit int `koanf:"candidate_pool_limit" validate:"min=1"`
	// DefaultMaxResults applies when a caller asks for no particular count;
	// MaxResultsLimit caps GET /recommendations?limit.
	DefaultMaxResults int `koanf:"default_max_results" validate:"min=1"`
	MaxResultsLimit   int `koanf:"max_results_limit" validate:"gtefield=DefaultMaxResults"`

	// BatchScenes is a comma-separated list of scenes the daily regeneration covers.
	BatchScenes string `koanf:"batch_scenes" validate:"required"`
	// BatchSize caps users regenerated per scene and run.
	BatchSize           int `koanf:"batch_size" validate:"min=1"`
	RegenerationWorkers int `koanf:"regeneration_workers" validate:"min=1"`

	SchedulerTick        time.Duration `koanf:"scheduler_tick" validate:"gt=0"`
	RegenerationInterval time.Duration `koanf:"regeneration_interval" validate:"gt=0"`
	CleanupInterval      time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
	StatisticsInterval   time.Duration `koanf:"statistics_interval" validate:"gt=0"`
	ActionRetention      time.Duration `koanf:"action_retention" validate:"gt=0"`
	MatchStaleness       time.Duration `koanf:"match_staleness" validate:"gt=0"`

	// BreakerFailureThreshold is the number of consecutive collaborator
	// failures that opens a breaker; BreakerOpenTimeout is how long it stays open.
	BreakerFailureThreshold int           `koanf:"breaker_failure_threshold" validate:"min=1"`
	BreakerOpenTimeout      time.Duration `koanf:"breaker_open_timeout" validate:"gt=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreDriver:             StoreMemory,
		StoreMigrate:            true,
		CacheBackend:            CacheMemory,
		CacheShards:             32,
		RedisDB:                 0,
		RedisKeyPrefix:          "matchd:rec",
		CacheTTL:                24 * time.Hour,
		BatchCacheTTL:           26 * time.Hour,
		CandidatePoolLimit:      50,
		DefaultMaxResults:       10,
		MaxResultsLimit:         100,
		BatchScenes:             "housing,dating,activity",
		BatchSize:               200,
		RegenerationWorkers:     8,
		SchedulerTick:           time.Minute,
		RegenerationInterval:    24 * time.Hour,
		CleanupInterval:         time.Hour,
		StatisticsInterval:      30 * time.Minute,
		ActionRetention:         720 * time.Hour,
		MatchStaleness:          168 * time.Hour,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
		ShutdownTimeout:         10 * time.Second,
	}
}

// Scenes parses BatchScenes. Blank items are skipped.
func (c *Config) Scenes() ([]model.Scene, error) {
	var out []model.Scene
	for _, raw := range strings.Split(c.BatchScenes, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		sc, err := model.ParseScene(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: batch_scenes: %w", ErrInvalidConfig, err)
		}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: batch_scenes is empty", ErrInvalidConfig)
	}
	return out, nil
}
