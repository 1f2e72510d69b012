// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artecho/storefront-backend/internal/config"
)

// Client owns the connection pool shared by the cart slots, the user list and the rate limiter
type Client struct {
	Redis *redis.Client
}

// NewConnection opens the pool and waits for the first PING
func NewConnection(ctx context.Context, cfg *config.Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	log.Printf("✅ Redis connection established (%s, db %d)", cfg.GetRedisAddr(), cfg.Redis.DB)
	return &Client{Redis: rdb}, nil
}

// Wrap adapts an existing client
func Wrap(rdb *redis.Client) *Client {
	return &Client{Redis: rdb}
}

// Slots returns a slot store on this pool. A zero ttl keeps values forever.
func (c *Client) Slots(ttl time.Duration) *SlotStore {
	return NewSlotStore(c.Redis, ttl)
}

// GetClient returns the Redis client instance
func (c *Client) GetClient() *redis.Client {
	return c.Redis
}

// Health pings Redis
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}

// Close closes the pool
func (c *Client) Close() error {
	return c.Redis.Close()
}
