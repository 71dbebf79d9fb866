package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"registration-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheMenu stores a dinner form's menu so submission-time pricing doesn't
// hit Postgres on every request
func (c *Client) CacheMenu(ctx context.Context, formID int64, items []models.DinnerMenuItem, ttl time.Duration) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal menu: %w", err)
	}
	return c.rdb.Set(ctx, menuKey(formID), data, ttl).Err()
}

// GetCachedMenu retrieves a cached menu; found is false on a cache miss
func (c *Client) GetCachedMenu(ctx context.Context, formID int64) (items []models.DinnerMenuItem, found bool, err error) {
	data, err := c.rdb.Get(ctx, menuKey(formID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached menu: %w", err)
	}
	return items, true, nil
}

// InvalidateMenu drops a form's cached menu after an admin edit
func (c *Client) InvalidateMenu(ctx context.Context, formID int64) error {
	return c.rdb.Del(ctx, menuKey(formID)).Err()
}

// AcquireSubmissionLock takes a short lock on a checkout key so a
// double-clicked submit cannot race its own retry. The database unique
// constraint remains the real idempotency guarantee.
func (c *Client) AcquireSubmissionLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "submitlock:"+key, "1", ttl).Result()
}

// ReleaseSubmissionLock releases a submission lock
func (c *Client) ReleaseSubmissionLock(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, "submitlock:"+key).Err()
}

func menuKey(formID int64) string {
	return fmt.Sprintf("dinnermenu:%d", formID)
}
