// Package ratelimit limits requests per client IP with a sliding window,
// kept in a Redis sorted set when Redis is available and in process
// otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/study-assistant/backend/internal/slogging"
)

// slidingWindowScript trims the window, counts it and records the hit only
// when under the limit, all in one step. It returns
// {allowed, remaining, retryAfterSeconds}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[4])
local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[5])
	redis.call('EXPIRE', key, ARGV[6])
	return {1, limit - count - 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// IPRateLimiter implements rate limiting based on IP address.
type IPRateLimiter struct {
	redisClient *redis.Client
	memory      *memoryWindow
	limit       int
	window      time.Duration
	now         func() time.Time
	seq         atomic.Uint64
}

// NewIPRateLimiter creates a limiter allowing limit requests per window.
// With a nil client the window is kept in process, which only limits
// requests reaching this instance.
func NewIPRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *IPRateLimiter {
	r := &IPRateLimiter{
		redisClient: redisClient,
		limit:       limit,
		window:      window,
		now:         time.Now,
	}
	if redisClient == nil {
		r.memory = newMemoryWindow()
	}
	return r
}

func (r *IPRateLimiter) key(ipAddress string) string {
	return fmt.Sprintf("study:ratelimit:%ds:%s", int64(r.window.Seconds()), ipAddress)
}

// Allow records a request from ipAddress if it is under the limit.
func (r *IPRateLimiter) Allow(ctx context.Context, ipAddress string) (Result, error) {
	now := r.now()
	if r.memory != nil {
		return r.memory.hit(r.key(ipAddress), now, r.limit, r.window), nil
	}

	windowSeconds := int64(r.window.Seconds())
	member := fmt.Sprintf("%d:%d", now.UnixNano(), r.seq.Add(1))

	args := []any{
		strconv.FormatInt(now.Unix(), 10),
		strconv.FormatInt(windowSeconds, 10),
		strconv.Itoa(r.limit),
		strconv.FormatInt(now.Unix()-windowSeconds, 10),
		member,
		strconv.FormatInt(windowSeconds+60, 10),
	}
	vals, err := slidingWindowScript.Run(ctx, r.redisClient, []string{r.key(ipAddress)}, args...).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit check returned %d values", len(vals))
	}

	res := Result{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
	}
	if !res.Allowed {
		res.RetryAfter = max(time.Duration(vals[2])*time.Second, time.Second)
	}
	return res, nil
}

// Middleware rejects requests over the limit with 429 and Retry-After.
// Redis failures let the request through.
func (r *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		res, err := r.Allow(c.Request.Context(), ip)
		if err != nil {
			slogging.Get().Warn("Rate limit check failed for %s, allowing request: %v", ip, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(r.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests from this IP, please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}
