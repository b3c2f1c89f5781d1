// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"sales-insight-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the shared tier of the embedding cache.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	// Cache lookups sit on the request path, so fail fast rather than queue.
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     16,
		PoolTimeout:  time.Second,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Cmdable exposes the command set the embedding cache needs.
func (c *RedisClient) Cmdable() redis.Cmdable {
	return c.Client
}
