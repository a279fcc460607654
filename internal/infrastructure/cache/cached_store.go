package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/service/fraud"
)

// CachedStore layers Redis in front of the persistent store for the reads
// the assessment hot path hits hardest: blacklist membership and short
// lookback transaction counts. Every Redis failure falls back to the inner
// store; the cache only ever removes latency, never correctness.
type CachedStore struct {
	fraud.Store

	client *redis.Client
	logger *zap.Logger

	// countWindowMax bounds which lookback windows live in Redis counters.
	countWindowMax time.Duration
}

// NewCachedStore wraps the inner store with Redis-backed fast paths.
func NewCachedStore(inner fraud.Store, client *redis.Client, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		Store:          inner,
		client:         client,
		logger:         logger,
		countWindowMax: time.Hour,
	}
}

// CountRecentTransactions serves short windows from Redis velocity counters
// and falls back to the store for long windows or on any Redis error.
func (c *CachedStore) CountRecentTransactions(ctx context.Context, deviceID string, window time.Duration) (int, error) {
	if window > c.countWindowMax {
		return c.Store.CountRecentTransactions(ctx, deviceID, window)
	}

	count, err := c.client.Get(ctx, velocityKey(deviceID, window)).Int()
	if err == nil {
		return count, nil
	}
	if err != redis.Nil {
		c.logger.Warn("redis velocity read failed, falling back to store",
			zap.String("device_id", deviceID),
			zap.Duration("window", window),
			zap.Error(err))
	}

	return c.Store.CountRecentTransactions(ctx, deviceID, window)
}

// IsBlacklisted consults the Redis blacklist set first. A missing member is
// not authoritative, so misses still hit the store.
func (c *CachedStore) IsBlacklisted(ctx context.Context, kind fraud.BlacklistKind, value string) (bool, error) {
	member, err := c.client.SIsMember(ctx, blacklistKey(kind), value).Result()
	if err != nil {
		c.logger.Warn("redis blacklist read failed, falling back to store",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return c.Store.IsBlacklisted(ctx, kind, value)
	}
	if member {
		return true, nil
	}

	return c.Store.IsBlacklisted(ctx, kind, value)
}

// RecordTransaction bumps the device's velocity counters. Called by the
// payment flow after a transaction is accepted; failures are logged and
// dropped.
func (c *CachedStore) RecordTransaction(ctx context.Context, deviceID string, windows ...time.Duration) {
	for _, window := range windows {
		key := velocityKey(deviceID, window)
		pipe := c.client.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("redis velocity increment failed",
				zap.String("device_id", deviceID),
				zap.Duration("window", window),
				zap.Error(err))
		}
	}
}

// AddToBlacklist inserts a blacklist member into the Redis set so hot-path
// lookups see it immediately. The persistent entry is written elsewhere.
func (c *CachedStore) AddToBlacklist(ctx context.Context, kind fraud.BlacklistKind, value string) error {
	if err := c.client.SAdd(ctx, blacklistKey(kind), value).Err(); err != nil {
		return fmt.Errorf("adding %s blacklist member: %w", kind, err)
	}
	return nil
}

func velocityKey(deviceID string, window time.Duration) string {
	return fmt.Sprintf("velocity:%s:%s", deviceID, window)
}

func blacklistKey(kind fraud.BlacklistKind) string {
	return fmt.Sprintf("blacklist:%s", kind)
}
