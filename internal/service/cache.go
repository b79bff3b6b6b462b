package service

import (
	"context"
	"errors"
	"time"

	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cache wraps the redis repository. Every failure is logged and treated as
// a miss, the store stays the source of truth.
type cache struct {
	logger  *zap.Logger
	store   redisrepo.Default
	ttl     time.Duration
	metrics *metrics.Metrics
}

func getCached[T any](ctx context.Context, c *cache, key string) (*T, bool) {
	if c.store == nil {
		return nil, false
	}

	value, err := redisrepo.Get[T](c.store, ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Sugar().Errorf("failed to get key(%s) from redis: %s", key, err.Error())
		}
		c.metrics.CacheMiss()
		return nil, false
	}
	if value == nil {
		c.metrics.CacheMiss()
		return nil, false
	}

	c.metrics.CacheHit()
	return value, true
}

// getCachedMany is getCached for lists. A cached empty list is a hit.
func getCachedMany[T any](ctx context.Context, c *cache, key string) ([]*T, bool) {
	if c.store == nil {
		return nil, false
	}

	values, err := redisrepo.GetMany[T](c.store, ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Sugar().Errorf("failed to get key(%s) from redis: %s", key, err.Error())
		}
		c.metrics.CacheMiss()
		return nil, false
	}
	if values == nil {
		c.metrics.CacheMiss()
		return nil, false
	}

	c.metrics.CacheHit()
	return values, true
}

func (c *cache) set(ctx context.Context, key string, value interface{}) {
	if c.store == nil {
		return
	}
	if err := c.store.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Sugar().Errorf("failed to set key(%s) in redis: %s", key, err.Error())
	}
}

func (c *cache) del(ctx context.Context, keys ...string) {
	if c.store == nil || len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...).Err(); err != nil {
		c.logger.Sugar().Errorf("failed to delete keys(%v) from redis: %s", keys, err.Error())
	}
}

func (c *cache) delPattern(ctx context.Context, patterns ...string) {
	if c.store == nil {
		return
	}
	for _, pattern := range patterns {
		if err := redisrepo.DelPattern(c.store, ctx, pattern); err != nil {
			c.logger.Sugar().Errorf("failed to delete pattern(%s) from redis: %s", pattern, err.Error())
		}
	}
}
