// Package cache keeps the computed analytics summary in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/grade-compass/internal/models"
)

// StatsKey is the Redis key holding the serialized Stats
const StatsKey = "grade-compass:analytics:stats"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache implements analytics.StatsCache on Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached Stats; ok is false on a miss
func (c *RedisCache) Get(ctx context.Context) (*models.Stats, bool, error) {
	data, err := c.client.Get(ctx, StatsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read stats: %w", err)
	}

	var stats models.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		slog.Warn("discarding unreadable cached stats", "error", err)
		return nil, false, nil
	}
	return &stats, true, nil
}

// Set stores stats for the configured TTL
func (c *RedisCache) Set(ctx context.Context, stats *models.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := c.client.Set(ctx, StatsKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// Invalidate removes the cached Stats
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, StatsKey).Err()
}

// HealthCheck verifies Redis connectivity
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
