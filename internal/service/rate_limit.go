package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-sla/internal/clock"
)

// RateLimiter bounds how often a key may perform an action.
type RateLimiter interface {
	// Allow records one attempt for key. When the limit is exceeded it
	// returns false and the time until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter is a fixed-window limiter local to the process.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	clock   clock.Clock
	windows map[string]*window
}

// NewMemoryRateLimiter allows limit attempts per period and key.
func NewMemoryRateLimiter(limit int, period time.Duration, clk clock.Clock) *MemoryRateLimiter {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryRateLimiter{
		limit:   limit,
		period:  period,
		clock:   clk,
		windows: make(map[string]*window),
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.resetAt.Sub(now), nil
	}
	w.count++
	l.pruneLocked(now)
	return true, 0, nil
}

func (l *MemoryRateLimiter) pruneLocked(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RedisRateLimiter shares fixed windows between instances using INCR and
// EXPIRE.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	period time.Duration
}

// NewRedisRateLimiter builds a limiter storing counters under prefix.
func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, period time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, period: period}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.period)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if incr.Val() > int64(l.limit) {
		retry := ttl.Val()
		if retry <= 0 {
			retry = l.period
		}
		return false, retry, nil
	}
	return true, 0, nil
}
