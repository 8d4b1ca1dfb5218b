package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Criteria 证券查询条件，零值字段不参与过滤
type Criteria struct {
	Type         SecurityType
	UnderlyingID string
	OptionType   OptionType
	Strike       decimal.NullDecimal
	ExpiryDate   *time.Time
}

// Match 判断证券是否满足条件
func (c Criteria) Match(inst *Instrument) bool {
	if inst == nil {
		return false
	}
	if c.Type != "" && inst.Type != c.Type {
		return false
	}
	if c.UnderlyingID != "" && inst.UnderlyingID != c.UnderlyingID {
		return false
	}
	if c.OptionType != "" && inst.OptionType != c.OptionType {
		return false
	}
	if c.Strike.Valid && (!inst.Strike.Valid || !inst.Strike.Decimal.Equal(c.Strike.Decimal)) {
		return false
	}
	if c.ExpiryDate != nil && (inst.ExpiryDate == nil || !inst.ExpiryDate.Equal(*c.ExpiryDate)) {
		return false
	}
	return true
}

// SecurityProvider 证券元数据提供者
type SecurityProvider interface {
	LookupByID(id string) (*Instrument, bool)
	// Lookup 按条件枚举证券，结果保持注册顺序
	Lookup(criteria Criteria) []*Instrument
}

// MarketDataProvider 行情提供者，未知数据返回 false 而不是错误
type MarketDataProvider interface {
	SecurityValue(inst *Instrument, field Level1Field) (decimal.Decimal, bool)
	MarketDepth(inst *Instrument) (*MarketDepth, bool)
}

// PositionProvider 持仓提供者
type PositionProvider interface {
	Positions() []Position
}

// UnderlyingAsset 解析衍生品的标的资产
func UnderlyingAsset(derivative *Instrument, securities SecurityProvider) (*Instrument, error) {
	if derivative == nil {
		return nil, ErrNilInstrument
	}
	if derivative.UnderlyingID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingUnderlying, derivative.ID)
	}
	if securities == nil {
		return nil, fmt.Errorf("%w: security provider", ErrNilProvider)
	}
	asset, ok := securities.LookupByID(derivative.UnderlyingID)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %s", ErrUnderlyingNotFound, derivative.UnderlyingID, derivative.ID)
	}
	return asset, nil
}

// CurrentPrice 当前价格：优先最新成交价，否则取买卖一档中间价
func CurrentPrice(inst *Instrument, marketData MarketDataProvider) (decimal.Decimal, bool) {
	if inst == nil || marketData == nil {
		return decimal.Zero, false
	}
	if last, ok := marketData.SecurityValue(inst, FieldLastTradePrice); ok {
		return last, true
	}
	bid, okBid := marketData.SecurityValue(inst, FieldBestBidPrice)
	ask, okAsk := marketData.SecurityValue(inst, FieldBestAskPrice)
	switch {
	case okBid && okAsk:
		return bid.Add(ask).Div(two), true
	case okBid:
		return bid, true
	case okAsk:
		return ask, true
	}
	return decimal.Zero, false
}

// PositionSize 汇总某证券的持仓数量
func PositionSize(positions []Position, instrumentID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.InstrumentID == instrumentID {
			total = total.Add(p.CurrentValue)
		}
	}
	return total
}
