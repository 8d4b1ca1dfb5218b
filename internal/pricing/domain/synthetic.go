package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SyntheticLeg 合成头寸的一条腿
type SyntheticLeg struct {
	Instrument *Instrument `json:"instrument"`
	Side       Side        `json:"side"`
}

// OptionFor 按标的、行权价、到期日与类型查找期权
func OptionFor(underlying *Instrument, securities SecurityProvider, strike decimal.Decimal, expiry time.Time, optionType OptionType) (*Instrument, error) {
	if underlying == nil {
		return nil, ErrNilInstrument
	}
	if securities == nil {
		return nil, fmt.Errorf("%w: security provider", ErrNilProvider)
	}
	found := securities.Lookup(Criteria{
		Type:         SecurityTypeOption,
		UnderlyingID: underlying.ID,
		OptionType:   optionType,
		Strike:       decimal.NewNullDecimal(strike),
		ExpiryDate:   &expiry,
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s %s %s %s", ErrOptionNotFound, underlying.ID, optionType, strike, expiry.Format(time.DateOnly))
	}
	return found[0], nil
}

// Call 看涨期权
func Call(underlying *Instrument, securities SecurityProvider, strike decimal.Decimal, expiry time.Time) (*Instrument, error) {
	return OptionFor(underlying, securities, strike, expiry, OptionTypeCall)
}

// Put 看跌期权
func Put(underlying *Instrument, securities SecurityProvider, strike decimal.Decimal, expiry time.Time) (*Instrument, error) {
	return OptionFor(underlying, securities, strike, expiry, OptionTypePut)
}

// OppositeOption 同标的、同行权价、同到期日的相反类型期权
func OppositeOption(option *Instrument, securities SecurityProvider) (*Instrument, error) {
	if err := option.CheckOption(); err != nil {
		return nil, err
	}
	strike, err := option.CheckStrike()
	if err != nil {
		return nil, err
	}
	if securities == nil {
		return nil, fmt.Errorf("%w: security provider", ErrNilProvider)
	}
	found := securities.Lookup(Criteria{
		Type:         SecurityTypeOption,
		UnderlyingID: option.UnderlyingID,
		OptionType:   option.OptionType.Invert(),
		Strike:       decimal.NewNullDecimal(strike),
		ExpiryDate:   option.ExpiryDate,
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOppositeOptionNotFound, option.ID)
	}
	return found[0], nil
}

// SyntheticLegs 用标的与相反期权复制一个期权头寸：
// 看涨 = 标的(side) + 看跌(side)，看跌 = 标的(反向) + 看涨(side)
func SyntheticLegs(option *Instrument, side Side, securities SecurityProvider) ([]SyntheticLeg, error) {
	if err := side.Validate(); err != nil {
		return nil, err
	}
	if err := option.CheckOption(); err != nil {
		return nil, err
	}
	asset, err := UnderlyingAsset(option, securities)
	if err != nil {
		return nil, err
	}
	opposite, err := OppositeOption(option, securities)
	if err != nil {
		return nil, err
	}
	assetSide := side
	if option.OptionType == OptionTypePut {
		assetSide = side.Invert()
	}
	return []SyntheticLeg{
		{Instrument: asset, Side: assetSide},
		{Instrument: opposite, Side: side},
	}, nil
}

// UnderlyingLegs 用同行权价的看涨与看跌复制标的头寸：看涨(side) + 看跌(反向)
func UnderlyingLegs(underlying *Instrument, strike decimal.Decimal, expiry time.Time, side Side, securities SecurityProvider) ([]SyntheticLeg, error) {
	if err := side.Validate(); err != nil {
		return nil, err
	}
	call, err := Call(underlying, securities, strike, expiry)
	if err != nil {
		return nil, err
	}
	put, err := Put(underlying, securities, strike, expiry)
	if err != nil {
		return nil, err
	}
	return []SyntheticLeg{
		{Instrument: call, Side: side},
		{Instrument: put, Side: side.Invert()},
	}, nil
}

// Synthetic 针对单个期权的合成头寸构造器
type Synthetic struct {
	security   *Instrument
	securities SecurityProvider
}

// NewSynthetic 创建构造器
func NewSynthetic(security *Instrument, securities SecurityProvider) (*Synthetic, error) {
	if security == nil {
		return nil, ErrNilInstrument
	}
	if securities == nil {
		return nil, fmt.Errorf("%w: security provider", ErrNilProvider)
	}
	return &Synthetic{security: security, securities: securities}, nil
}

func (s *Synthetic) Buy() ([]SyntheticLeg, error) { return s.Position(SideBuy) }

func (s *Synthetic) Sell() ([]SyntheticLeg, error) { return s.Position(SideSell) }

func (s *Synthetic) Position(side Side) ([]SyntheticLeg, error) {
	return SyntheticLegs(s.security, side, s.securities)
}

// UnderlyingPosition 以该证券为标的，在给定行权价与到期日上合成标的头寸
func (s *Synthetic) UnderlyingPosition(strike decimal.Decimal, expiry time.Time, side Side) ([]SyntheticLeg, error) {
	return UnderlyingLegs(s.security, strike, expiry, side, s.securities)
}
