// Package cache provides the key/value result cache injected into the
// readiness service.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache stores opaque values with a time-to-live. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Backend selects a cache implementation.
type Backend string

const (
	MemoryBackend Backend = "memory"
	RedisBackend  Backend = "redis"
	NoneBackend   Backend = "none"
)

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// New builds the cache for backend. The returned close function releases
// backend connections and is never nil.
func New(ctx context.Context, backend Backend, opts RedisOptions) (Cache, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case MemoryBackend, "":
		return NewMemory(), noop, nil
	case NoneBackend:
		return None{}, noop, nil
	case RedisBackend:
		r, err := DialRedis(ctx, opts)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported cache backend %q: must be memory, redis or none", backend)
	}
}

// None is a cache that stores nothing.
type None struct{}

var _ Cache = None{} // Compile-time check

// Get always misses.
func (None) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (None) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (None) Delete(context.Context, string) error { return nil }
