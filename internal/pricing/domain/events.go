package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OptionPricedEventType      = "OptionPriced"
	BasketRevaluedEventType    = "BasketRevalued"
	VolatilityUpdatedEventType = "VolatilityUpdated"
	StrikeRuleSavedEventType   = "StrikeRuleSaved"
	PricingErrorEventType      = "PricingError"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	InstrumentID    string              `json:"instrument_id"`
	UnderlyingID    string              `json:"underlying_id"`
	OptionType      OptionType          `json:"option_type"`
	Strike          decimal.Decimal     `json:"strike"`
	ExpiryDate      time.Time           `json:"expiry_date"`
	PricingModel    ModelKind           `json:"pricing_model"`
	UnderlyingPrice decimal.NullDecimal `json:"underlying_price"`
	Volatility      decimal.Decimal     `json:"volatility"`
	Greeks          Greeks              `json:"greeks"`
	OccurredOn      time.Time           `json:"occurred_on"`
}

// BasketRevaluedEvent 篮子重估事件
type BasketRevaluedEvent struct {
	BasketID     string    `json:"basket_id"`
	UnderlyingID string    `json:"underlying_id"`
	Legs         int       `json:"legs"`
	Greeks       Greeks    `json:"greeks"`
	OccurredOn   time.Time `json:"occurred_on"`
}

// VolatilityUpdatedEvent 隐含波动率行情更新事件
type VolatilityUpdatedEvent struct {
	InstrumentID  string              `json:"instrument_id"`
	OldVolatility decimal.NullDecimal `json:"old_volatility"`
	NewVolatility decimal.Decimal     `json:"new_volatility"`
	OccurredOn    time.Time           `json:"occurred_on"`
}

// StrikeRuleSavedEvent 行权价规则保存事件
type StrikeRuleSavedEvent struct {
	UnderlyingID string    `json:"underlying_id"`
	Name         string    `json:"name"`
	Rule         string    `json:"rule"`
	OccurredOn   time.Time `json:"occurred_on"`
}

// PricingErrorEvent 定价错误事件
type PricingErrorEvent struct {
	InstrumentID string    `json:"instrument_id"`
	Error        string    `json:"error"`
	OccurredOn   time.Time `json:"occurred_on"`
}
