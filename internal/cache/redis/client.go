package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/pkg/logger"
)

const keyPrefix = "ticket:"

// Client is a cache.Cache backed by Redis, for deployments that run more
// than one API instance.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

// NewFromRedis wraps an existing client.
func NewFromRedis(client *redis.Client) *Client {
	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	logger.Debug("Cache entry stored", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

// Invalidate deletes every key starting with prefix.
func (c *Client) Invalidate(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Cache invalidated", zap.String("prefix", prefix), zap.Int("deleted", deleted))
	return nil
}
