package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"discount-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	codeCachePrefix  = "discount:code:"
	versionKeyPrefix = "discounts:v:"
	defaultTTL       = 30 * time.Second
	maxInflightSets  = 8
)

// RedisDiscountCache caches code lookups for the validate path. Entries are
// keyed by a per-owner version, so invalidation is one INCR; short TTL keeps
// counter drift bounded (the usage ledger re-checks at commit regardless).
type RedisDiscountCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	sem    chan struct{} // caps in-flight async writes
}

func NewRedisDiscountCache(client *redis.Client, logger *zap.Logger) *RedisDiscountCache {
	return &RedisDiscountCache{
		redis:  client,
		ttl:    defaultTTL,
		logger: logger,
		sem:    make(chan struct{}, maxInflightSets),
	}
}

// Get returns a cached discount for (owner, code), if present.
func (c *RedisDiscountCache) Get(ctx context.Context, ownerID, code string) (*models.Discount, bool) {
	version, err := c.redis.Get(ctx, versionKeyPrefix+ownerID).Int64()
	if err != nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, c.codeKey(ownerID, version, code)).Result()
	if err != nil {
		return nil, false
	}

	var discount models.Discount
	if err := json.Unmarshal([]byte(data), &discount); err != nil {
		c.logger.Warn("Failed to unmarshal cached discount", zap.Error(err))
		return nil, false
	}
	return &discount, true
}

// SetAsync caches a discount without blocking the request. In-flight writes
// are capped; when the cap is hit the write is skipped and the next lookup
// falls through to Postgres.
func (c *RedisDiscountCache) SetAsync(ownerID string, discount *models.Discount) {
	select {
	case c.sem <- struct{}{}:
	default:
		return
	}

	d := *discount
	go func() {
		defer func() { <-c.sem }()

		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := c.redis.Get(bgCtx, versionKeyPrefix+ownerID).Int64()
		if err != nil {
			if err != redis.Nil {
				return
			}
			version = 1
			if err := c.redis.Set(bgCtx, versionKeyPrefix+ownerID, version, 0).Err(); err != nil {
				return
			}
		}

		data, err := json.Marshal(&d)
		if err != nil {
			c.logger.Warn("Failed to marshal discount for cache", zap.Error(err))
			return
		}
		if err := c.redis.Set(bgCtx, c.codeKey(ownerID, version, d.Code), data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache discount", zap.String("code", d.Code), zap.Error(err))
		}
	}()
}

// Invalidate drops all cached entries for an owner by bumping the version.
func (c *RedisDiscountCache) Invalidate(ctx context.Context, ownerID string) {
	if err := c.redis.Incr(ctx, versionKeyPrefix+ownerID).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

func (c *RedisDiscountCache) codeKey(ownerID string, version int64, code string) string {
	return fmt.Sprintf("%s%s:%d:%s", codeCachePrefix, ownerID, version, code)
}
