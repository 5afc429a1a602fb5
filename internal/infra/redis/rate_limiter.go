package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// RateLimiter counts calls per client in windows aligned to the clock. Every
// window owns its own counter key, so a counter whose EXPIRE was lost only
// ever blocks the window it belongs to.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow reports whether one more call under key fits in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	now := r.now()
	start := now.Truncate(window)
	counter := windowKey(key, start)

	n, err := r.client.Incr(ctx, counter)
	if err != nil {
		return false, fmt.Errorf("count %s: %w", counter, err)
	}
	if n == 1 {
		// keep the counter a little past the window end for clock skew between replicas
		ttl := start.Add(window).Sub(now) + time.Second
		if err := r.client.Expire(ctx, counter, ttl); err != nil {
			return false, fmt.Errorf("expire %s: %w", counter, err)
		}
	}
	return n <= int64(limit), nil
}

func windowKey(key string, start time.Time) string {
	return key + ":" + strconv.FormatInt(start.Unix(), 10)
}

func SingleCopyKey(clientID string) string {
	return "rate_limit:single:" + clientID
}
