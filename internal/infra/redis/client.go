package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/recall/internal/core/domain"
	"github.com/vietddude/recall/internal/metrics"
	"github.com/vietddude/recall/internal/resilience"
)

// Client wraps Redis operations for the conversation context cache.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultTTL is applied when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w",
			resilience.Classify(resilience.ErrorTypeCacheConnection, err))
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func contextKey(ticketID string) string {
	return fmt.Sprintf("context:%s", ticketID)
}

// StoreContext caches the recent conversation for a ticket.
func (c *Client) StoreContext(
	ctx context.Context,
	ticketID string,
	messages []*domain.ChatMessage,
) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	if err := c.rdb.Set(ctx, contextKey(ticketID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w",
			resilience.Classify(resilience.ErrorTypeCacheOperation, err))
	}
	return nil
}

// GetContext returns the cached conversation for a ticket. The second
// return value is false on a cache miss.
func (c *Client) GetContext(
	ctx context.Context,
	ticketID string,
) ([]*domain.ChatMessage, bool, error) {
	data, err := c.rdb.Get(ctx, contextKey(ticketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheHitsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("get failed: %w",
			resilience.Classify(resilience.ErrorTypeCacheOperation, err))
	}

	var messages []*domain.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		c.rdb.Del(ctx, contextKey(ticketID))
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
	return messages, true, nil
}

// InvalidateContext removes the cached conversation for a ticket.
func (c *Client) InvalidateContext(ctx context.Context, ticketID string) error {
	if err := c.rdb.Del(ctx, contextKey(ticketID)).Err(); err != nil {
		return fmt.Errorf("del failed: %w",
			resilience.Classify(resilience.ErrorTypeCacheOperation, err))
	}
	return nil
}

// Health checks if the cache is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
