package grpc

import (
	"context"
	"errors"

	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeTable = []struct {
	code codes.Code
	errs []error
}{
	{codes.NotFound, []error{
		domain.ErrInstrumentNotFound,
		domain.ErrBasketNotFound,
		domain.ErrLegNotFound,
		domain.ErrOptionNotFound,
		domain.ErrOppositeOptionNotFound,
		domain.ErrUnderlyingNotFound,
		application.ErrRuleNotFound,
	}},
	{codes.AlreadyExists, []error{domain.ErrDuplicateLeg}},
	{codes.InvalidArgument, []error{
		application.ErrInvalidArgument,
		domain.ErrUnknownModel,
		domain.ErrUnknownStrikeRule,
		domain.ErrInvalidRange,
		domain.ErrInvalidSide,
		domain.ErrInvalidRoundDecimals,
		domain.ErrNegativeDeviation,
		domain.ErrFuturesDividend,
	}},
	{codes.FailedPrecondition, []error{
		domain.ErrNilInstrument,
		domain.ErrNotOption,
		domain.ErrMissingOptionType,
		domain.ErrMissingStrike,
		domain.ErrInvalidStrike,
		domain.ErrMissingExpiry,
		domain.ErrMissingUnderlying,
		domain.ErrMissingBoard,
		domain.ErrLegMismatch,
		domain.ErrNoOptions,
		domain.ErrStrikeStep,
		application.ErrPriceUnavailable,
	}},
}

func codeOf(err error) codes.Code {
	if _, ok := status.FromError(err); ok {
		return status.Code(err)
	}
	for _, row := range codeTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.code
			}
		}
	}
	return codes.Internal
}

// toStatus 领域错误转换为 gRPC 状态
func toStatus(ctx context.Context, method string, err error) error {
	code := codeOf(err)
	if code == codes.Internal {
		logger.Error(ctx, "gRPC analytics call failed", "method", method, "error", err)
	} else {
		logger.Debug(ctx, "gRPC analytics call rejected", "method", method, "code", code.String(), "error", err)
	}
	return status.Error(code, err.Error())
}
