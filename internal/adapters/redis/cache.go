// Package redisad holds the Redis-backed snapshot cache.
package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hotel_fusion/internal/adapters/observability"
	"hotel_fusion/internal/domain"
)

var _ domain.Cache = (*Cache)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key so several deployments can share a Redis.
	Prefix string
}

// Cache stores JSON values under Prefix+key. Every write carries an expiry.
type Cache struct {
	c      *redis.Client
	prefix string
}

func New(o Options) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}), o.Prefix)
}

func NewFromClient(c *redis.Client, prefix string) *Cache { return &Cache{c: c, prefix: prefix} }

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

// Key returns the Redis key a cache key is stored under.
func (r *Cache) Key(key string) string { return r.prefix + key }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		observability.ObserveCache("redis", "error")
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		// a value we cannot decode is as good as absent
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

// Set stores v as JSON. A non-positive ttlSec is clamped to one second.
func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttlSec < 1 {
		ttlSec = 1
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, r.Key(key), b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, r.Key(key)).Err()
}
