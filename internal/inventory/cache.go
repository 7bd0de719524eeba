package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ReportCache stores stock reports in Redis under per-company versioned keys.
// Invalidate bumps the version so stale reports are never read again and
// expire through their TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewReportCache instantiates the cache. A nil client disables caching.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{client: client, ttl: ttl}
}

func versionKey(companyID int64) string {
	return fmt.Sprintf("stock:version:%d", companyID)
}

// Version returns the company's cache version, 0 when never bumped.
func (c *ReportCache) Version(ctx context.Context, companyID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Fetch loads a cached report or fills it with loader. Concurrent misses for
// the same key share a single loader call.
func (c *ReportCache) Fetch(ctx context.Context, companyID int64, scope string, loader func(context.Context) ([]BalanceRow, error)) ([]BalanceRow, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("stock:report:%d:%s:v%d", companyID, scope, ver)
	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var rows []BalanceRow
		if err := json.Unmarshal(payload, &rows); err == nil {
			return rows, nil
		}
	}
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		rows, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(rows); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]BalanceRow), nil
	}
}

// Invalidate drops every cached report of the company.
func (c *ReportCache) Invalidate(ctx context.Context, companyID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(companyID)).Err()
}
