// Package cache holds the plan-tier cache consulted before every generation.
// The memory variant is per instance; the Redis variant is shared by every
// process pointed at the same Redis.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type TierCache interface {
	Get(ctx context.Context, userID int64) (string, bool)
	Set(ctx context.Context, userID int64, tier string)
	Invalidate(ctx context.Context, userID int64)
}

type memoryTierCache struct {
	c *gocache.Cache
}

func NewMemoryTierCache(ttl time.Duration) TierCache {
	return &memoryTierCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *memoryTierCache) Get(ctx context.Context, userID int64) (string, bool) {
	v, ok := m.c.Get(key(userID))
	if !ok {
		return "", false
	}
	tier, ok := v.(string)
	return tier, ok
}

func (m *memoryTierCache) Set(ctx context.Context, userID int64, tier string) {
	m.c.SetDefault(key(userID), tier)
}

func (m *memoryTierCache) Invalidate(ctx context.Context, userID int64) {
	m.c.Delete(key(userID))
}

type redisTierCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTierCache(rdb *redis.Client, ttl time.Duration) TierCache {
	return &redisTierCache{rdb: rdb, ttl: ttl}
}

// Get treats Redis failures as misses so the caller falls through to the
// database.
func (r *redisTierCache) Get(ctx context.Context, userID int64) (string, bool) {
	tier, err := r.rdb.Get(ctx, key(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("tier cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return "", false
	}
	return tier, true
}

func (r *redisTierCache) Set(ctx context.Context, userID int64, tier string) {
	if err := r.rdb.Set(ctx, key(userID), tier, r.ttl).Err(); err != nil {
		zap.L().Warn("tier cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (r *redisTierCache) Invalidate(ctx context.Context, userID int64) {
	if err := r.rdb.Del(ctx, key(userID)).Err(); err != nil {
		zap.L().Warn("tier cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func key(userID int64) string {
	return "threadcraft:tier:" + strconv.FormatInt(userID, 10)
}
