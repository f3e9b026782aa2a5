package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper is a Redis SetNX fast path for at-most-once work. It is only an
// optimisation: callers still need a durable marker behind it.
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce returns true the first time key is seen within ttl.
func (d *Deduper) AcquireOnce(ctx context.Context, key string) bool {
	if d == nil || d.rdb == nil {
		return true
	}

	ok, err := d.rdb.SetNX(ctx, "dedup:"+key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理，由持久化标记兜底
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Debug("Skipped duplicated work", zap.String("key", key))
	}
	return ok
}

// Release forgets key, used when the guarded work did not complete.
func (d *Deduper) Release(ctx context.Context, key string) {
	if d == nil || d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, "dedup:"+key).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key", zap.String("key", key), zap.Error(err))
	}
}
