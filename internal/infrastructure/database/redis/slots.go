// internal/infrastructure/database/redis/slots.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotStore keeps local slots (guest carts, user mirrors, the user list) as Redis strings
type SlotStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSlotStore creates a slot store. A zero ttl keeps values forever.
func NewSlotStore(client redis.Cmdable, ttl time.Duration) *SlotStore {
	return &SlotStore{client: client, ttl: ttl}
}

// Read returns the value and whether the key exists
func (s *SlotStore) Read(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Write stores value and refreshes the expiry
func (s *SlotStore) Write(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (s *SlotStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
