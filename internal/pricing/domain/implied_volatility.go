package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const maxVolatilityIterations = 10000

var (
	minDeviation = decimal.RequireFromString("0.00001")
	maxDeviation = decimal.NewFromInt(2)
)

// PremiumFunc 给定波动率（小数）计算理论价
type PremiumFunc func(deviation decimal.Decimal) (decimal.NullDecimal, error)

// ImpliedVolatility 二分法反解隐含波动率，结果为百分比。
// 目标价格不高于 σ=0.00001 对应的理论价时返回无值。
func ImpliedVolatility(premium decimal.Decimal, getPremium PremiumFunc) (decimal.NullDecimal, error) {
	return bisectVolatility(premium, getPremium, minDeviation, maxVolatilityIterations)
}

func bisectVolatility(premium decimal.Decimal, getPremium PremiumFunc, epsilon decimal.Decimal, maxIterations int) (decimal.NullDecimal, error) {
	if getPremium == nil {
		return decimal.NullDecimal{}, ErrNilPremiumFunc
	}

	floor, err := getPremium(epsilon)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if !floor.Valid || premium.LessThanOrEqual(floor.Decimal) {
		return decimal.NullDecimal{}, nil
	}

	low, high := decimal.Zero, maxDeviation
	for i := 0; high.Sub(low).GreaterThan(epsilon); i++ {
		if i >= maxIterations {
			return decimal.NullDecimal{}, fmt.Errorf("%w after %d iterations (premium %s)", ErrVolatilityNotConverged, maxIterations, premium)
		}
		mid := high.Add(low).Div(two)
		p, err := getPremium(mid)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		if !p.Valid {
			return decimal.NullDecimal{}, nil
		}
		if p.Decimal.GreaterThan(premium) {
			high = mid
		} else {
			low = mid
		}
	}

	return decimal.NewNullDecimal(high.Add(low).Div(two).Mul(hundred)), nil
}
