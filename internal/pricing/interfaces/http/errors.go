package http

import (
	"errors"
	"net/http"

	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{
		domain.ErrInstrumentNotFound,
		domain.ErrBasketNotFound,
		domain.ErrLegNotFound,
		domain.ErrOptionNotFound,
		domain.ErrOppositeOptionNotFound,
		domain.ErrUnderlyingNotFound,
		application.ErrRuleNotFound,
	}},
	{http.StatusConflict, []error{domain.ErrDuplicateLeg}},
	{http.StatusBadRequest, []error{
		application.ErrInvalidArgument,
		domain.ErrUnknownModel,
		domain.ErrUnknownStrikeRule,
		domain.ErrInvalidRange,
		domain.ErrInvalidSide,
		domain.ErrInvalidRoundDecimals,
		domain.ErrNegativeDeviation,
		domain.ErrFuturesDividend,
	}},
	{http.StatusUnprocessableEntity, []error{
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

// statusOf 领域错误到 HTTP 状态码，未识别的错误为 500
func statusOf(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}
