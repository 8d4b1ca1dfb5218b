package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FilterByStrike 按行权价过滤
func FilterByStrike(instruments []*Instrument, strike decimal.Decimal) []*Instrument {
	return filter(instruments, func(i *Instrument) bool {
		return i.Strike.Valid && i.Strike.Decimal.Equal(strike)
	})
}

// FilterByType 按期权类型过滤
func FilterByType(instruments []*Instrument, optionType OptionType) []*Instrument {
	return filter(instruments, func(i *Instrument) bool { return i.OptionType == optionType })
}

// FilterByUnderlying 按标的过滤
func FilterByUnderlying(instruments []*Instrument, underlyingID string) []*Instrument {
	return filter(instruments, func(i *Instrument) bool { return i.UnderlyingID == underlyingID })
}

// FilterByExpiry 按到期日过滤
func FilterByExpiry(instruments []*Instrument, expiry time.Time) []*Instrument {
	return filter(instruments, func(i *Instrument) bool {
		return i.ExpiryDate != nil && i.ExpiryDate.Equal(expiry)
	})
}

func filter(instruments []*Instrument, keep func(*Instrument) bool) []*Instrument {
	out := make([]*Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst != nil && keep(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// Derivatives 枚举标的的期权，expiry 为 nil 时不限到期日
func Derivatives(underlying *Instrument, securities SecurityProvider, expiry *time.Time) []*Instrument {
	if underlying == nil || securities == nil {
		return nil
	}
	return securities.Lookup(Criteria{
		Type:         SecurityTypeOption,
		UnderlyingID: underlying.ID,
		ExpiryDate:   expiry,
	})
}

// CentralStrike 行权价最接近标的价格的合约，距离相同时取先出现者
func CentralStrike(candidates []*Instrument, assetPrice decimal.Decimal) (*Instrument, bool) {
	var (
		best     *Instrument
		bestDist decimal.Decimal
	)
	for _, c := range candidates {
		if c == nil || !c.Strike.Valid {
			continue
		}
		dist := c.Strike.Decimal.Sub(assetPrice).Abs()
		if best == nil || dist.LessThan(bestDist) {
			best, bestDist = c, dist
		}
	}
	return best, best != nil
}

// CentralStrikeOf 以标的当前价格求中心行权价，价格未知时返回 false
func CentralStrikeOf(underlying *Instrument, marketData MarketDataProvider, candidates []*Instrument) (*Instrument, bool) {
	price, ok := CurrentPrice(underlying, marketData)
	if !ok {
		return nil, false
	}
	return CentralStrike(candidates, price)
}

// StrikeClassification 价内、价外与平值划分
type StrikeClassification struct {
	InTheMoney    []*Instrument
	OutOfTheMoney []*Instrument
	AtTheMoney    []*Instrument
}

// ClassifyStrikes 看涨与看跌分别求中心行权价后划分
func ClassifyStrikes(candidates []*Instrument, assetPrice decimal.Decimal) StrikeClassification {
	call, okCall := CentralStrike(FilterByType(candidates, OptionTypeCall), assetPrice)
	put, okPut := CentralStrike(FilterByType(candidates, OptionTypePut), assetPrice)

	var res StrikeClassification
	for _, c := range candidates {
		if c == nil || !c.Strike.Valid {
			continue
		}
		var central *Instrument
		switch {
		case c.OptionType == OptionTypeCall && okCall:
			central = call
		case c.OptionType == OptionTypePut && okPut:
			central = put
		default:
			continue
		}
		cmp := c.Strike.Decimal.Cmp(central.Strike.Decimal)
		if c.OptionType == OptionTypePut {
			cmp = -cmp
		}
		switch {
		case cmp > 0:
			res.OutOfTheMoney = append(res.OutOfTheMoney, c)
		case cmp < 0:
			res.InTheMoney = append(res.InTheMoney, c)
		}
	}
	if okCall {
		res.AtTheMoney = append(res.AtTheMoney, call)
	}
	if okPut {
		res.AtTheMoney = append(res.AtTheMoney, put)
	}
	return res
}

// OutOfTheMoney 看涨行权价高于中心、看跌行权价低于中心
func OutOfTheMoney(candidates []*Instrument, assetPrice decimal.Decimal) []*Instrument {
	return ClassifyStrikes(candidates, assetPrice).OutOfTheMoney
}

// InTheMoney 与 OutOfTheMoney 相反
func InTheMoney(candidates []*Instrument, assetPrice decimal.Decimal) []*Instrument {
	return ClassifyStrikes(candidates, assetPrice).InTheMoney
}

// AtTheMoney 看涨与看跌各自的中心行权价合约，0 至 2 个
func AtTheMoney(candidates []*Instrument, assetPrice decimal.Decimal) []*Instrument {
	return ClassifyStrikes(candidates, assetPrice).AtTheMoney
}

// StrikeStep 最近到期组中最低两个看涨行权价之差
func StrikeStep(underlying *Instrument, securities SecurityProvider, expiry *time.Time) (decimal.Decimal, error) {
	if underlying == nil {
		return decimal.Zero, ErrNilInstrument
	}
	calls := FilterByType(Derivatives(underlying, securities, expiry), OptionTypeCall)

	var nearest *time.Time
	for _, c := range calls {
		if c.ExpiryDate == nil || !c.Strike.Valid {
			continue
		}
		if nearest == nil || c.ExpiryDate.Before(*nearest) {
			nearest = c.ExpiryDate
		}
	}
	if nearest == nil {
		return decimal.Zero, fmt.Errorf("%w: %s has no call strikes", ErrStrikeStep, underlying.ID)
	}

	strikes := make([]decimal.Decimal, 0, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for _, c := range FilterByExpiry(calls, *nearest) {
		if !c.Strike.Valid {
			continue
		}
		key := c.Strike.Decimal.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		strikes = append(strikes, c.Strike.Decimal)
	}
	if len(strikes) < 2 {
		return decimal.Zero, fmt.Errorf("%w: %s has %d strike(s) expiring %s", ErrStrikeStep, underlying.ID, len(strikes), nearest.Format(time.DateOnly))
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i].LessThan(strikes[j]) })
	return strikes[1].Sub(strikes[0]), nil
}

// IntrinsicValue 内在价值 max(0, ±(S-K))，行情未知时无值
func IntrinsicValue(option *Instrument, securities SecurityProvider, marketData MarketDataProvider) (decimal.NullDecimal, error) {
	if err := option.CheckOption(); err != nil {
		return decimal.NullDecimal{}, err
	}
	strike, err := option.CheckStrike()
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	asset, err := UnderlyingAsset(option, securities)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	price, ok := CurrentPrice(asset, marketData)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	v := price.Sub(strike)
	if option.OptionType == OptionTypePut {
		v = v.Neg()
	}
	return decimal.NewNullDecimal(decimal.Max(v, decimal.Zero)), nil
}

// TimeValue 期权当前价格减内在价值
func TimeValue(option *Instrument, securities SecurityProvider, marketData MarketDataProvider) (decimal.NullDecimal, error) {
	intrinsic, err := IntrinsicValue(option, securities, marketData)
	if err != nil || !intrinsic.Valid {
		return intrinsic, err
	}
	price, ok := CurrentPrice(option, marketData)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(price.Sub(intrinsic.Decimal)), nil
}
