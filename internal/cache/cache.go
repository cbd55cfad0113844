// Package cache stores search results keyed by snapshot content, search
// configuration and query.
//
// Keys embed the snapshot digest, so a reload onto different records makes
// every earlier entry unreachable without an explicit flush, and processes
// sharing one Redis only share entries for identical collections and
// settings. Stale entries simply expire.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"upi-transaction-lookup/internal/matcher"
	apperrors "upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "txnlookup:"

// Key builds the cache key for a query against one snapshot digest under
// one search configuration
func Key(digest, configFingerprint, queryFingerprint string) string {
	return keyPrefix + digest + ":" + configFingerprint + ":" + queryFingerprint
}

// ResultCache stores search results
type ResultCache interface {
	// Get returns the cached result. A miss returns nil, false, nil.
	Get(ctx context.Context, key string) (*matcher.SearchResult, bool, error)

	// Set stores a result under key
	Set(ctx context.Context, key string, result *matcher.SearchResult) error
}

// NopCache never stores anything
type NopCache struct{}

// Get always misses
func (NopCache) Get(ctx context.Context, key string) (*matcher.SearchResult, bool, error) {
	return nil, false, nil
}

// Set discards the result
func (NopCache) Set(ctx context.Context, key string, result *matcher.SearchResult) error {
	return nil
}

// Config configures a RedisCache
type Config struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() *Config {
	return &Config{
		TTL: 5 * time.Minute,
	}
}

// Validate checks if the cache configuration is valid
func (c *Config) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative: %s", c.TTL)
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db cannot be negative: %d", c.DB)
	}
	return nil
}

// Enabled reports whether a Redis address is configured
func (c *Config) Enabled() bool {
	return c != nil && c.Addr != ""
}

// RedisCache stores JSON-encoded results in Redis with a TTL
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, config *Config) (*RedisCache, error) {
	if config == nil || config.Addr == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "redis_addr", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "cache", config.TTL, err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.NetworkError(apperrors.CodeConnectionFailed, config.Addr, err)
	}

	return NewRedisCacheWithClient(client, config.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.GetGlobalLogger().WithComponent("cache"),
	}
}

// Get retrieves the result stored under key
func (rc *RedisCache) Get(ctx context.Context, key string) (*matcher.SearchResult, bool, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result matcher.SearchResult
	if err := json.Unmarshal(val, &result); err != nil {
		rc.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		_ = rc.client.Del(ctx, key).Err()
		return nil, false, nil
	}

	return &result, true, nil
}

// Set stores result under key. 0 ttl means no expiration.
func (rc *RedisCache) Set(ctx context.Context, key string, result *matcher.SearchResult) error {
	if key == "" || result == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Close closes the underlying client
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
