// Package config holds the engine's configuration and its layered loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"readiness/internal/analysis"
	"readiness/internal/cache"
	"readiness/internal/store"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	Store   StoreConfig          `koanf:"store"`
	Cache   CacheConfig          `koanf:"cache"`
	Lock    LockConfig           `koanf:"lock"`
	Log     LogConfig            `koanf:"log"`
	Metrics MetricsConfig        `koanf:"metrics"`
	Model   analysis.ModelParams `koanf:"model"`
}

// StoreConfig selects the database backend. An empty sqlite DSN means
// ~/.readiness/data.db.
type StoreConfig struct {
	Backend store.Backend `koanf:"backend"`
	DSN     string        `koanf:"dsn"`
}

// CacheConfig selects the assessment cache.
type CacheConfig struct {
	Backend cache.Backend `koanf:"backend"`
	TTL     time.Duration `koanf:"ttl"`
	Redis   RedisConfig   `koanf:"redis"`
}

// RedisConfig holds redis connection settings for the cache.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Lock backends.
const (
	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// LockConfig selects the per-day computation lock.
type LockConfig struct {
	Backend string        `koanf:"backend"`
	Addrs   []string      `koanf:"addrs"`
	TTL     time.Duration `koanf:"ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

// MetricsConfig controls metric naming and the optional textfile written
// after each command, for node_exporter's textfile collector. Empty Buckets
// keep the Prometheus defaults for the compute duration histogram.
type MetricsConfig struct {
	Namespace string    `koanf:"namespace"`
	Textfile  string    `koanf:"textfile"`
	Buckets   []float64 `koanf:"buckets"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: store.SQLiteBackend},
		Cache: CacheConfig{
			Backend: cache.MemoryBackend,
			TTL:     24 * time.Hour,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Lock: LockConfig{
			Backend: LockNone,
			TTL:     30 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Namespace: "readiness"},
		Model:   analysis.DefaultModelParams(),
	}
}

// Validate checks backend names, their required settings and the model
// parameters.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.SQLiteBackend:
	case store.PostgresBackend:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store.backend must be sqlite or postgres, got %q", ErrInvalidConfig, c.Store.Backend)
	}

	switch c.Cache.Backend {
	case cache.MemoryBackend, cache.NoneBackend:
	case cache.RedisBackend:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required for the redis cache", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: cache.backend must be memory, redis or none, got %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative, got %s", ErrInvalidConfig, c.Cache.TTL)
	}

	switch c.Lock.Backend {
	case LockNone, LockLocal:
	case LockRedis:
		if len(c.Lock.Addrs) == 0 {
			return fmt.Errorf("%w: lock.addrs is required for the redis lock", ErrInvalidConfig)
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("%w: lock.ttl must be positive, got %s", ErrInvalidConfig, c.Lock.TTL)
		}
	default:
		return fmt.Errorf("%w: lock.backend must be none, local or redis, got %q", ErrInvalidConfig, c.Lock.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level must be debug, info, warn or error, got %q", ErrInvalidConfig, c.Log.Level)
	}

	for i := 1; i < len(c.Metrics.Buckets); i++ {
		if c.Metrics.Buckets[i] <= c.Metrics.Buckets[i-1] {
			return fmt.Errorf("%w: metrics.buckets must be strictly increasing, got %v", ErrInvalidConfig, c.Metrics.Buckets)
		}
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("%w: model: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultPath returns ~/.readiness/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".readiness", "config.yaml"), nil
}
