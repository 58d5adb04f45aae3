package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

// CachedUsageReader is a read-through Redis cache in front of a UsageReader.
// Cache failures fall back to the underlying reader.
type CachedUsageReader struct {
	next   UsageReader
	client redis.Cmdable
	ttl    time.Duration
}

// NewCachedUsageReader wraps next with a Redis cache
func NewCachedUsageReader(next UsageReader, client redis.Cmdable, ttl time.Duration) *CachedUsageReader {
	return &CachedUsageReader{
		next:   next,
		client: client,
		ttl:    ttl,
	}
}

func usageCacheKey(userID, promoCodeID string) string {
	return fmt.Sprintf("promo:usage:{%s}:%s", promoCodeID, userID)
}

// GetUserPromoCodeUsageCount returns the cached count or loads it from the read model
func (c *CachedUsageReader) GetUserPromoCodeUsageCount(ctx context.Context, userID, promoCodeID string) (int64, error) {
	key := usageCacheKey(userID, promoCodeID)

	count, err := c.client.Get(ctx, key).Int64()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("usage cache read failed")
	}

	count, err = c.next.GetUserPromoCodeUsageCount(ctx, userID, promoCodeID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, count, c.ttl).Err(); err != nil {
		zlog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("usage cache write failed")
	}

	return count, nil
}

// Invalidate drops the cached count for a user and promo code
func (c *CachedUsageReader) Invalidate(ctx context.Context, userID, promoCodeID string) error {
	if err := c.client.Del(ctx, usageCacheKey(userID, promoCodeID)).Err(); err != nil {
		return fmt.Errorf("invalidate usage cache: %w", err)
	}
	return nil
}
