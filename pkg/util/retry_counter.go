package util

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptCounter counts attempts per key inside a fixed window, e.g. failed
// logins per e-mail address.
type AttemptCounter struct {
	rdb    redis.Cmdable
	window time.Duration
	prefix string
}

func NewAttemptCounter(rdb redis.Cmdable, prefix string, window time.Duration) *AttemptCounter {
	return &AttemptCounter{rdb: rdb, window: window, prefix: prefix}
}

// Increment increments the count for key and returns the new count. The
// window starts on the first increment.
func (c *AttemptCounter) Increment(ctx context.Context, key string) (int64, error) {
	k := c.prefix + key
	count, err := c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, k, c.window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Get returns the current count, 0 when the window has expired.
func (c *AttemptCounter) Get(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Get(ctx, c.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// Reset clears the count for key.
func (c *AttemptCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}
