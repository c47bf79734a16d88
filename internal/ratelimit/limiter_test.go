package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestIPRateLimiterSlidingWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewIPRateLimiter(client, 3, time.Hour)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Hour, res.RetryAfter)

	// Other addresses have their own window.
	res, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// Once the window slides past the first requests, slots free up.
	clock = clock.Add(time.Hour + time.Second)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func countAllowed(t *testing.T, limiter *IPRateLimiter, requests int) int {
	t.Helper()
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		failed  atomic.Int64
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Allow(context.Background(), "10.0.0.9")
			if err != nil {
				failed.Add(1)
				return
			}
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Zero(t, failed.Load())
	return int(allowed.Load())
}

func TestIPRateLimiterConcurrentBurst(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewIPRateLimiter(client, 15, 24*time.Hour)
		assert.Equal(t, 15, countAllowed(t, limiter, 100))
	})

	t.Run("in process", func(t *testing.T) {
		limiter := NewIPRateLimiter(nil, 15, 24*time.Hour)
		assert.Equal(t, 15, countAllowed(t, limiter, 100))
	})
}

func TestIPRateLimiterInProcessWindow(t *testing.T) {
	limiter := NewIPRateLimiter(nil, 2, time.Minute)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		clock = clock.Add(10 * time.Second)
	}

	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	// The first hit was 20s ago and leaves the window in 40s.
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	clock = clock.Add(41 * time.Second)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	// Idle addresses are dropped once a full window has passed.
	clock = clock.Add(2 * time.Minute)
	_, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	limiter.memory.mu.Lock()
	_, kept := limiter.memory.hits[limiter.key("10.0.0.1")]
	limiter.memory.mu.Unlock()
	assert.False(t, kept)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("rejects over limit with retry-after", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		limiter := NewIPRateLimiter(client, 1, 24*time.Hour)

		router := gin.New()
		router.Use(limiter.Middleware())
		router.POST("/api/chat", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	})

	t.Run("limits in process without redis", func(t *testing.T) {
		limiter := NewIPRateLimiter(nil, 1, 24*time.Hour)
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return clock }

		router := gin.New()
		router.Use(limiter.Middleware())
		router.POST("/api/summarize", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summarize", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/summarize", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "86400", w.Header().Get("Retry-After"))
	})

	t.Run("allows requests when redis fails", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		limiter := NewIPRateLimiter(client, 1, time.Minute)
		mr.Close()

		router := gin.New()
		router.Use(limiter.Middleware())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
