package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/mmynk/tabsplit/internal/metrics"
)

// Redis defaults.
const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "tabsplit:alloc:"
)

// Redis is a cache backed by a Redis server. Values are snappy-compressed.
// Calls go through a circuit breaker so an unavailable server costs one fast
// failure per lookup instead of a network timeout.
type Redis struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	prefix  string
	ttl     time.Duration
}

// RedisOption configures a Redis cache.
type RedisOption func(*redisConfig)

type redisConfig struct {
	prefix   string
	ttl      time.Duration
	failures uint32
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// WithTTL sets the expiry of cached entries.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *redisConfig) { c.ttl = ttl }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) RedisOption {
	return func(c *redisConfig) {
		c.failures = consecutiveFailures
		c.timeout = openFor
	}
}

// WithMetrics records breaker state changes.
func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(c *redisConfig) { c.metrics = m }
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	cfg := redisConfig{
		prefix:   DefaultPrefix,
		ttl:      DefaultTTL,
		failures: 5,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	settings := gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			cfg.metrics.BreakerTransition(name, to.String())
		},
	}

	return &Redis{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		prefix:  cfg.prefix,
		ttl:     cfg.ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		b, err := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is a healthy answer and must not count against the breaker.
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	compressed, _ := v.([]byte)
	if compressed == nil {
		return nil, ErrMiss
	}
	value, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, r.prefix+key, snappy.Encode(nil, value), r.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// State returns the circuit breaker state, e.g. "closed" or "open".
func (r *Redis) State() string {
	return r.breaker.State().String()
}
