package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"pos-service/internal/models"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection.
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

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// CartStore implements cart.Store over redis so carts survive instance
// restarts and are shared between instances. Carts expire after the TTL.
type CartStore struct {
	client *Client
	ttl    time.Duration
}

// NewCartStore creates a redis-backed cart store.
func NewCartStore(client *Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

// Get returns the cart's lines, or nil when the cart does not exist.
func (s *CartStore) Get(ctx context.Context, cartID string) ([]models.CartLine, error) {
	raw, err := s.client.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart %s: %w", cartID, err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", cartID, err)
	}
	return lines, nil
}

// Save stores the cart's lines and refreshes its TTL.
func (s *CartStore) Save(ctx context.Context, cartID string, lines []models.CartLine) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", cartID, err)
	}
	return s.client.rdb.Set(ctx, cartKey(cartID), raw, s.ttl).Err()
}

// Delete removes the cart.
func (s *CartStore) Delete(ctx context.Context, cartID string) error {
	return s.client.rdb.Del(ctx, cartKey(cartID)).Err()
}
