package database

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
)

// Cache is the keyed fast-store contract the pipeline depends on. Values are
// opaque strings with explicit TTLs; list operations back the transcript
// recency cache. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value at key, or apperrors.ErrCacheMiss if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// PushRight appends values to the list at key.
	PushRight(ctx context.Context, key string, values ...string) error

	// Range returns list elements from start to stop inclusive (0, -1 for
	// the whole list). An absent key yields an empty slice.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Expire resets the TTL of key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a Redis client in the Cache interface.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) PushRight(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return c.client.RPush(ctx, key, args...).Err()
}

func (c *RedisCache) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.client.LRange(ctx, key, start, stop).Result()
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}
