package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const summaryVersionKey = "ledger:summary:version"

// RedisSummaryCache caches the balance summary in redis under a versioned
// key. Invalidation bumps the version instead of deleting, so a stale value
// can never be read back after a mutation commits.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSummaryCache instantiates the cache helper.
func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func (c *RedisSummaryCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, summaryVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, summaryVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Get returns the cached summary and whether one was present.
func (c *RedisSummaryCache) Get(ctx context.Context) (BalanceSummary, bool, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return BalanceSummary{}, false, err
	}
	payload, err := c.client.Get(ctx, shared.SummaryCacheKey(ver)).Bytes()
	if errors.Is(err, redis.Nil) {
		return BalanceSummary{}, false, nil
	}
	if err != nil {
		return BalanceSummary{}, false, err
	}
	var summary BalanceSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return BalanceSummary{}, false, err
	}
	return summary, true, nil
}

// Set stores the summary under the current version.
func (c *RedisSummaryCache) Set(ctx context.Context, summary BalanceSummary) error {
	ver, err := c.version(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, shared.SummaryCacheKey(ver), payload, c.ttl).Err()
}

// Invalidate bumps the version so subsequent reads miss.
func (c *RedisSummaryCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, summaryVersionKey).Err()
}
