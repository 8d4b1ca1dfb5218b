package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/cache"
)

func TestResultKey(t *testing.T) {
	assert.Equal(t, "pricing_result:SPOT-C-100", resultKey("SPOT-C-100"))
}

// 需要本地 Redis：TEST_REDIS_ADDR=127.0.0.1:6379
func TestPricingCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	c := NewPricingCache(cache.NewFromClient(client), time.Minute)

	miss, err := c.Get(ctx, "SPOT-C-100")
	require.NoError(t, err)
	assert.Nil(t, miss)

	res := &domain.PricingResult{
		InstrumentID: "SPOT-C-100",
		PricingModel: domain.ModelBlack76,
		Greeks:       domain.Greeks{Delta: decimal.NewNullDecimal(decimal.RequireFromString("0.51"))},
	}
	require.NoError(t, c.Set(ctx, res))
	t.Cleanup(func() { _ = c.Delete(ctx, "SPOT-C-100") })

	got, err := c.Get(ctx, "SPOT-C-100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ModelBlack76, got.PricingModel)
	assert.True(t, got.Greeks.Delta.Valid)
	assert.False(t, got.Greeks.Gamma.Valid)
}
