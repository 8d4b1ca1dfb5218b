package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/cache"
)

const resultPrefix = "pricing_result:"

// PricingCache 最新定价结果缓存，按证券 ID 存 JSON
type PricingCache struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

var _ domain.PricingCache = (*PricingCache)(nil)

// NewPricingCache ttl 为 0 时不过期
func NewPricingCache(c *cache.RedisCache, ttl time.Duration) *PricingCache {
	return &PricingCache{cache: c, ttl: ttl}
}

// Get 未命中时返回 nil
func (r *PricingCache) Get(ctx context.Context, instrumentID string) (*domain.PricingResult, error) {
	if instrumentID == "" {
		return nil, nil
	}
	var result domain.PricingResult
	found, err := r.cache.GetJSON(ctx, resultKey(instrumentID), &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

func (r *PricingCache) Set(ctx context.Context, result *domain.PricingResult) error {
	if result == nil {
		return nil
	}
	return r.cache.SetJSON(ctx, resultKey(result.InstrumentID), result, r.ttl)
}

func (r *PricingCache) Delete(ctx context.Context, instrumentID string) error {
	return r.cache.Delete(ctx, resultKey(instrumentID))
}

func resultKey(instrumentID string) string {
	return resultPrefix + instrumentID
}
