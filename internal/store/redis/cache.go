package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UserCache remembers which user ids are known to exist so the push-channel
// handshake does not hit the database on every connect.
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*UserCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

func (c *UserCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("redis.UserCache.Close: %w", err)
	}
	return nil
}

// Known reports whether id was remembered and has not expired.
func (c *UserCache) Known(ctx context.Context, id uuid.UUID) (bool, error) {
	err := c.client.Get(ctx, UserKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis.UserCache.Known: %w", err)
	}
	return true, nil
}

// Remember marks id as an existing user for the cache TTL.
func (c *UserCache) Remember(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Set(ctx, UserKey(id), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis.UserCache.Remember: %w", err)
	}
	return nil
}

// UserKey returns the Redis key for a known user.
func UserKey(id uuid.UUID) string {
	return "user:" + id.String()
}
