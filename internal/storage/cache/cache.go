// Package cache is a small JSON-over-Redis cache used for video metadata.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings. An empty Addr disables caching.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return rc, nil
}

// JSON stores values of T as JSON strings under prefix:key.
type JSON[T any] struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewJSON returns a cache writing under prefix with the given expiry. A nil client yields a
// cache that always misses.
func NewJSON[T any](rc *redis.Client, prefix string, ttl time.Duration) *JSON[T] {
	return &JSON[T]{rc: rc, prefix: prefix, ttl: ttl}
}

func (c *JSON[T]) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns nil, nil on a miss.
func (c *JSON[T]) Get(ctx context.Context, k string) (*T, error) {
	if c == nil || c.rc == nil {
		return nil, nil
	}
	data, err := c.rc.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &v, nil
}

func (c *JSON[T]) Set(ctx context.Context, k string, v *T) error {
	if c == nil || c.rc == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := c.rc.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (c *JSON[T]) Delete(ctx context.Context, k string) error {
	if c == nil || c.rc == nil {
		return nil
	}
	if err := c.rc.Del(ctx, c.key(k)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}
