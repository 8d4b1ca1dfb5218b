package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"github.com/wyfcoding/derivanalytics/pkg/ratelimit"
	"github.com/wyfcoding/pkg/response"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RateLimitMiddleware 按客户端 IP 限流，未绑定限流器或限流器故障时放行
func RateLimitMiddleware(policy *ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := policy.Check(c.Request.Context(), fmt.Sprintf("ratelimit:http:%s", c.ClientIP()))
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if res == nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.Limit().Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second), 10))
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "Too Many Requests", "retry after "+res.RetryAfter.String())
			c.Abort()
			return
		}
		c.Next()
	}
}

// GRPCRateLimitInterceptor 按对端地址限流，超限返回 ResourceExhausted
func GRPCRateLimitInterceptor(policy *ratelimit.Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		res, err := policy.Check(ctx, "ratelimit:grpc:"+peerAddr(ctx))
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable", "error", err)
			return handler(ctx, req)
		}
		if res != nil && !res.Allowed {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry after %s", res.RetryAfter)
		}
		return handler(ctx, req)
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
