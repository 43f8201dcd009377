// Package cache holds the Redis-backed Wordfeud session cache and the run lock
// that keeps two extractor runs for the same user from overlapping.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache wraps a Redis client
type RedisCache struct {
	client *redis.Client
}

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetSession returns the cached Wordfeud session id for key
func (c *RedisCache) GetSession(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session: %w", err)
	}
	return val, true, nil
}

// SetSession caches a Wordfeud session id
func (c *RedisCache) SetSession(ctx context.Context, key, sessionID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// DeleteSession removes a cached Wordfeud session id
func (c *RedisCache) DeleteSession(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AcquireLock takes a lock on key for at most ttl. It returns a release
// function and true when the lock was taken, or false when another holder has it.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		metrics.RecordLockContention()
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled on shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}
	return release, true, nil
}

// Health pings Redis
func (c *RedisCache) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
