package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/todoer/internal/config"
)

// bucketScript refills continuously at ARGV[3] tokens per millisecond and
// takes one token.  It returns {allowed, remaining, wait_ms}.
var bucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local now = tonumber(ARGV[1])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now
tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[4]))
return { allowed, math.floor(tokens), wait }
`)

// NewTokenBucket limits requests per key with a Redis-backed token bucket
// holding cfg.Capacity tokens and gaining cfg.RefillTokens every
// cfg.RefillInterval.  Without Redis, or when disabled, it passes every
// request through.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	perMs := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	ttl := int64(cfg.TTL / time.Second)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := bucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, perMs, ttl).Int64Slice()
			if err != nil || len(res) != 3 {
				c.Logger().Warnf("ratelimit: key=%s: %v %v", key, res, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}

			secs := int(math.Ceil(float64(res[2]) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// buildRateKey joins the dimensions named by cfg.KeyStrategy (any of ip,
// user and route separated by "_") into a Redis key, e.g.
// "rl:ip:10.0.0.1:route:POST /v1/auth/login".  An unknown strategy uses
// all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	dims := map[string]string{
		"ip":    ip,
		"user":  currentUserID(c),
		"route": c.Request().Method + " " + c.Path(),
	}

	parts := []string{cfg.Prefix}
	for _, d := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if v, ok := dims[d]; ok {
			parts = append(parts, d, v)
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", dims["ip"], "user", dims["user"], "route", dims["route"])
	}
	return strings.Join(parts, ":")
}
