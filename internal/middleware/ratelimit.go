package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

// counterStore is the slice of the Redis client the limiter needs.
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisRateLimiter shares counters between instances through Redis.
type RedisRateLimiter struct {
	client counterStore
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter builds a limiter allowing limit attempts per window.
func NewRedisRateLimiter(client counterStore, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow increments the counter for key and reports whether the caller is still under the limit.
// The window starts with the first attempt, which is the only one that sets the TTL.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, l.limit, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, l.limit, fmt.Errorf("rate limit expire %s: %w", redisKey, err)
		}
	}
	return int(count) <= l.limit, remaining(l.limit, int(count)), nil
}

type windowCount struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter keeps counters in process. It is used when Redis is not configured.
// Expired windows are swept at most once per window.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[string]*windowCount
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryRateLimiter builds an in-process limiter.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{limit: limit, window: window, entries: map[string]*windowCount{}, now: time.Now}
}

// Allow implements RateLimiter.
func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowCount{resetAt: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++
	return entry.count <= l.limit, remaining(l.limit, entry.count), nil
}

func (l *MemoryRateLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
		}
	}
	l.nextSweep = now.Add(l.window)
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}

// RateLimit rejects callers over the limit with 429. Limiter failures let the request through.
func RateLimit(limiter RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		allowed, left, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(left))
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many attempts, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
