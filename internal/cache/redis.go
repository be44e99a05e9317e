package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// Redis is a cache shared between processes.
type Redis struct {
	client redis.Cmdable
	closer func() error
}

var _ Cache = (*Redis)(nil) // Compile-time check

// DialRedis connects to a redis server and verifies the connection.
func DialRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis cache at %s: %w", opts.Addr, err)
	}

	return &Redis{client: client, closer: client.Close}, nil
}

// NewRedis wraps an existing client. The caller keeps ownership of it.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, closer: func() error { return nil }}
}

// Get returns the value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s from redis: %w", key, err)
	}
	return b, true, nil
}

// Set stores value for ttl. A ttl <= 0 never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing %s to redis: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %s from redis: %w", key, err)
	}
	return nil
}

// Close closes a connection opened by DialRedis.
func (r *Redis) Close() error {
	return r.closer()
}
