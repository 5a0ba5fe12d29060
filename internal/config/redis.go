package config

// Redis backs three optional concerns: the auth rate limiter, the response
// cache of public endpoints and the store for single-use OAuth state.
// When Redis is unreachable the client constructor returns nil and callers
// degrade (no rate limiting, no caching, in-memory OAuth state).

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis.  REDIS_ADDR is used unless
// both REDIS_HOST and REDIS_PORT are set.
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	TLS      bool   `envconfig:"TLS" default:"false"`
}

// RateLimitConfig drives the token bucket middleware.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	Capacity       int           `envconfig:"CAPACITY" default:"20"`
	RefillTokens   int           `envconfig:"REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"3s"`
	TTL            time.Duration `envconfig:"TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"KEY_STRATEGY" default:"ip_route"`
	Prefix         string        `envconfig:"PREFIX" default:"rl"`
}

// CacheConfig drives the response cache middleware.  Only GET responses
// with status 200 are cached.
type CacheConfig struct {
	Enabled      bool          `envconfig:"ENABLED" default:"true"`
	TTL          time.Duration `envconfig:"TTL" default:"30s"`
	Prefix       string        `envconfig:"PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"MAX_BODY_BYTES" default:"65536"`
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	var c RedisConfig
	if err := envconfig.Process("REDIS", &c); err != nil {
		return RedisConfig{}, fmt.Errorf("load redis config: %w", err)
	}
	if c.Host != "" && c.Port != "" {
		c.Addr = c.Host + ":" + c.Port
	}
	return c, nil
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps nonsensical
// values to usable ones.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := envconfig.Process("RATE_LIMIT", &c); err != nil {
		return RateLimitConfig{}, fmt.Errorf("load rate limit config: %w", err)
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	c.KeyStrategy = strings.ToLower(c.KeyStrategy)
	return c, nil
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() (CacheConfig, error) {
	var c CacheConfig
	if err := envconfig.Process("CACHE", &c); err != nil {
		return CacheConfig{}, fmt.Errorf("load cache config: %w", err)
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c, nil
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when the server cannot be reached.
func NewRedisClient(c RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
