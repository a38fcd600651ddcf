// Package ratelimit implements a fixed-window request counter backed by
// Redis. Each key gets an INCR with a TTL set on the first hit of the window.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows at most max hits per key per window.
type Limiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

// New creates a limiter.
func New(client *redis.Client, max int64, window time.Duration) *Limiter {
	return &Limiter{client: client, max: max, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= l.max, nil
}
