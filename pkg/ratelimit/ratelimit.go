// Package ratelimit 提供基于 Redis GCRA 的分布式限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimiter 按 key 判断请求是否放行
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则：Period 内 Rate 个请求，突发 Burst
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond 每秒 qps 个请求
func PerSecond(qps, burst int) Limit {
	return Limit{Rate: qps, Period: time.Second, Burst: burst}
}

// Result 限流判断结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter 基于 redis_rate 的实现
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

var _ RateLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter 共用已有的 Redis 客户端
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{limiter: redis_rate.NewLimiter(rdb)}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Policy 绑定限流器与规则；Bind 之前所有请求放行
type Policy struct {
	mu      sync.RWMutex
	limiter RateLimiter
	limit   Limit
}

// Bind 设置限流器与规则，limiter 为 nil 时解除绑定
func (p *Policy) Bind(limiter RateLimiter, limit Limit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter = limiter
	p.limit = limit
}

// Limit 当前规则
func (p *Policy) Limit() Limit {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limit
}

// Check 按绑定的规则判断 key，未绑定时返回 nil
func (p *Policy) Check(ctx context.Context, key string) (*Result, error) {
	p.mu.RLock()
	limiter, limit := p.limiter, p.limit
	p.mu.RUnlock()
	if limiter == nil {
		return nil, nil
	}
	return limiter.Allow(ctx, key, limit)
}
