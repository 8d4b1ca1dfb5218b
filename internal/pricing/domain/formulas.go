package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// DaysInYear Theta 默认按自然日折算
const DaysInYear = 365

// YearTimeLine 年化时间的分母
const YearTimeLine = DaysInYear * 24 * time.Hour

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
	percent = decimal.RequireFromString("0.01")
)

// NormalCDF 标准正态分布累积分布函数
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalPDF 标准正态分布概率密度函数
func NormalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// ExpirationTimeLine 距到期的年化时间，已到期返回 false
func ExpirationTimeLine(expiry, now time.Time) (float64, bool) {
	return ExpirationTimeLineWith(expiry, now, YearTimeLine)
}

// ExpirationTimeLineWith 以自定义时间长度折算
func ExpirationTimeLineWith(expiry, now time.Time, timeLine time.Duration) (float64, bool) {
	left := expiry.Sub(now)
	if left <= 0 || timeLine <= 0 {
		return 0, false
	}
	return float64(left) / float64(timeLine), true
}

// ExpRate 折现因子 exp(-rate*t)，利率为零时恒为 1
func ExpRate(rate decimal.Decimal, t float64) float64 {
	if rate.IsZero() {
		return 1
	}
	return math.Exp(-rate.InexactFloat64() * t)
}

// D1 计算 d1。
// 波动率为 0 且 ln(S/K)+(r-q)T 恰为 0（如 r=q 时平值）时结果为 0/0 = NaN，
// 后续 Premium、Delta 等会返回 ErrNonFiniteValue；其余情况 d1 为 ±Inf，价格退化为内在价值。
func D1(assetPrice, strike, riskFree, dividend, deviation decimal.Decimal, t float64) (float64, error) {
	if deviation.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegativeDeviation, deviation)
	}
	if !strike.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidStrike, strike)
	}
	drift := riskFree.Sub(dividend).Add(deviation.Mul(deviation).Div(two)).InexactFloat64()
	ln := math.Log(assetPrice.InexactFloat64() / strike.InexactFloat64())
	return (ln + drift*t) / (deviation.InexactFloat64() * math.Sqrt(t)), nil
}

// D2 计算 d2
func D2(d1 float64, deviation decimal.Decimal, t float64) float64 {
	return d1 - deviation.InexactFloat64()*math.Sqrt(t)
}

// Premium 理论价
func Premium(optionType OptionType, strike, assetPrice, riskFree, dividend, deviation decimal.Decimal, t, d1 float64) (decimal.Decimal, error) {
	sign := optionType.sign()
	d2 := D2(d1, deviation, t)

	spot, err := toDecimal(ExpRate(dividend, t) * NormalCDF(sign*d1))
	if err != nil {
		return decimal.Zero, err
	}
	discounted, err := toDecimal(ExpRate(riskFree, t) * NormalCDF(sign*d2))
	if err != nil {
		return decimal.Zero, err
	}
	v := assetPrice.Mul(spot).Sub(strike.Mul(discounted))
	if sign < 0 {
		v = v.Neg()
	}
	return v, nil
}

// Delta 看跌期权在 N(d1) 基础上减 1
func Delta(optionType OptionType, d1 float64) (decimal.Decimal, error) {
	v, err := toDecimal(NormalCDF(d1))
	if err != nil {
		return decimal.Zero, err
	}
	if optionType == OptionTypePut {
		v = v.Sub(decimal.NewFromInt(1))
	}
	return v, nil
}

// Gamma 波动率或标的价格为零时返回 0
func Gamma(assetPrice, deviation decimal.Decimal, t, d1 float64) (decimal.Decimal, error) {
	if deviation.IsZero() || assetPrice.IsZero() {
		return decimal.Zero, nil
	}
	pdf, err := toDecimal(NormalPDF(d1))
	if err != nil {
		return decimal.Zero, err
	}
	sqrtT, err := toDecimal(math.Sqrt(t))
	if err != nil {
		return decimal.Zero, err
	}
	denominator := assetPrice.Mul(deviation).Mul(sqrtT)
	if denominator.IsZero() {
		return decimal.Zero, nil
	}
	return pdf.Div(denominator), nil
}

// Vega 波动率变动一个百分点的价格变化
func Vega(assetPrice decimal.Decimal, t, d1 float64) (decimal.Decimal, error) {
	v, err := toDecimal(0.01 * NormalPDF(d1) * math.Sqrt(t))
	if err != nil {
		return decimal.Zero, err
	}
	return assetPrice.Mul(v), nil
}

// Theta 每日时间价值损耗
func Theta(optionType OptionType, strike, assetPrice, riskFree, deviation decimal.Decimal, t, d1 float64) (decimal.Decimal, error) {
	return ThetaIn(optionType, strike, assetPrice, riskFree, deviation, t, d1, DaysInYear)
}

// ThetaIn 以 daysInYear 天折算的 Theta
func ThetaIn(optionType OptionType, strike, assetPrice, riskFree, deviation decimal.Decimal, t, d1 float64, daysInYear int) (decimal.Decimal, error) {
	if daysInYear <= 0 {
		return decimal.Zero, fmt.Errorf("days in year must be positive: %d", daysInYear)
	}
	sign := optionType.sign()
	d2 := D2(d1, deviation, t)

	pdf, err := toDecimal(NormalPDF(d1))
	if err != nil {
		return decimal.Zero, err
	}
	twoSqrtT, err := toDecimal(2 * math.Sqrt(t))
	if err != nil {
		return decimal.Zero, err
	}
	carry, err := toDecimal(sign * ExpRate(riskFree, t) * NormalCDF(sign*d2))
	if err != nil {
		return decimal.Zero, err
	}

	decay := assetPrice.Mul(deviation).Mul(pdf).Neg()
	if !twoSqrtT.IsZero() {
		decay = decay.Div(twoSqrtT)
	}
	return decay.Sub(strike.Mul(riskFree).Mul(carry)).Div(decimal.NewFromInt(int64(daysInYear))), nil
}

// Rho 利率变动一个百分点的价格变化
func Rho(optionType OptionType, strike, riskFree, deviation decimal.Decimal, t, d1 float64) (decimal.Decimal, error) {
	sign := optionType.sign()
	d2 := D2(d1, deviation, t)
	v, err := toDecimal(sign * t * ExpRate(riskFree, t) * NormalCDF(sign*d2))
	if err != nil {
		return decimal.Zero, err
	}
	return percent.Mul(strike).Mul(v), nil
}

// toDecimal decimal.NewFromFloat 遇到 NaN/Inf 会 panic
func toDecimal(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNonFiniteValue, v)
	}
	return decimal.NewFromFloat(v), nil
}
