package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habitflow/pkg/metrics"
)

// InsightsCache stores rendered insights reports in Redis. A nil cache, or
// any Redis failure, falls through to computation.
type InsightsCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewInsightsCache(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *InsightsCache {
	return &InsightsCache{rdb: rdb, ttl: ttl, logger: logger}
}

// CacheKey is insights:{owner}:{horizon}:{today}.
func CacheKey(ownerID int64, horizon int, today string) string {
	return fmt.Sprintf("insights:%d:%d:%s", ownerID, horizon, today)
}

func ownerPattern(ownerID int64) string {
	return fmt.Sprintf("insights:%d:*", ownerID)
}

func (c *InsightsCache) Get(ctx context.Context, key string) (*InsightsReport, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncrementInsightsCache("miss")
		return nil, false
	}
	if err != nil {
		metrics.IncrementInsightsCache("error")
		c.logger.Warn("Insights cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var report InsightsReport
	if err := json.Unmarshal(data, &report); err != nil {
		metrics.IncrementInsightsCache("error")
		c.logger.Warn("Dropping unreadable insights cache entry", zap.String("key", key), zap.Error(err))
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false
	}
	metrics.IncrementInsightsCache("hit")
	return &report, true
}

func (c *InsightsCache) Put(ctx context.Context, key string, report *InsightsReport) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("Failed to encode insights report", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Insights cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached report of the owner.
func (c *InsightsCache) Invalidate(ctx context.Context, ownerID int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, ownerPattern(ownerID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan insights keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete insights keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
