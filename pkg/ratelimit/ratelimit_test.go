package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerSecond(t *testing.T) {
	assert.Equal(t, Limit{Rate: 10, Period: time.Second, Burst: 20}, PerSecond(10, 20))
}

type fixedLimiter struct {
	allowed bool
	limits  []Limit
}

func (f *fixedLimiter) Allow(_ context.Context, _ string, limit Limit) (*Result, error) {
	f.limits = append(f.limits, limit)
	return &Result{Allowed: f.allowed}, nil
}

func TestPolicy(t *testing.T) {
	var p Policy
	res, err := p.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, res)

	l := &fixedLimiter{allowed: false}
	p.Bind(l, PerSecond(5, 10))
	res, err = p.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, []Limit{PerSecond(5, 10)}, l.limits)
	assert.Equal(t, 10, p.Limit().Burst)

	p.Bind(nil, Limit{})
	res, err = p.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, res)
}

// 需要本地 Redis：TEST_REDIS_ADDR=127.0.0.1:6379
func TestRedisRateLimiterExhaustsBurst(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisRateLimiter(rdb)
	key := fmt.Sprintf("test:ratelimit:%d", time.Now().UnixNano())
	limit := PerSecond(1, 2)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(context.Background(), key, limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(context.Background(), key, limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.RetryAfter > 0)
}
