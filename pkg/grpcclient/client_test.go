package grpcclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestInterceptorRetriesUnavailable(t *testing.T) {
	calls := 0
	invoker := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error {
		calls++
		if calls < 3 {
			return status.Error(codes.Unavailable, "warming up")
		}
		return nil
	}
	err := unaryClientInterceptor(ClientConfig{MaxRetries: 3, RetryDelay: 1})(context.Background(), "/svc/M", nil, nil, nil, invoker)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestInterceptorDoesNotRetryInvalidArgument(t *testing.T) {
	calls := 0
	invoker := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error {
		calls++
		return status.Error(codes.InvalidArgument, "bad strike")
	}
	err := unaryClientInterceptor(ClientConfig{MaxRetries: 3, RetryDelay: 1})(context.Background(), "/svc/M", nil, nil, nil, invoker)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, 1, calls)
}

func TestInterceptorInjectsTraceID(t *testing.T) {
	ctx := logger.ContextWithTrace(context.Background(), "trace-9", "", "")
	var got []string
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get("x-trace-id")
		return nil
	}
	assert.NoError(t, unaryClientInterceptor(ClientConfig{})(ctx, "/svc/M", nil, nil, nil, invoker))
	assert.Equal(t, []string{"trace-9"}, got)
}
