// Package cache provides the Redis access layer: tag resolution cache,
// session principal cache, scan counters and rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with the application's key layout.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, connects and pings.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Redirects and auth hit Redis on every request; the worker adds one SCAN loop.
	opt.PoolSize = 20
	opt.MinIdleConns = 4
	opt.PoolTimeout = 2 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second

	return NewFromClient(ctx, redis.NewClient(opt))
}

// NewFromClient wraps an existing client. The client is closed if the ping fails.
func NewFromClient(ctx context.Context, client *redis.Client) (*Cache, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
