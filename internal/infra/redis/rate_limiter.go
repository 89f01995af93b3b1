package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter keyed per caller and action.
type RateLimiter struct {
	client RedisClient
	limit  int64
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: int64(limit), window: window}
}

// Allow reports whether key still has budget in the current window.
// Redis errors are returned as-is; callers decide whether to fail open.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.IncrWindow(ctx, key, r.window)
	if err != nil {
		return false, err
	}
	return count <= r.limit, nil
}

// UserActionKey scopes a counter to one user and one action, e.g. order creation.
func UserActionKey(userID, action string) string {
	return "ratelimit:" + action + ":" + userID
}
