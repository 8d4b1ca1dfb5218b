package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingResult 期权定价结果实体
type PricingResult struct {
	ID              uint                `json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	InstrumentID    string              `json:"instrument_id"`
	UnderlyingID    string              `json:"underlying_id"`
	PricingModel    ModelKind           `json:"pricing_model"`
	UnderlyingPrice decimal.NullDecimal `json:"underlying_price"`
	Volatility      decimal.Decimal     `json:"volatility"` // 小数形式
	RiskFree        decimal.Decimal     `json:"risk_free"`
	Dividend        decimal.Decimal     `json:"dividend"`
	Greeks          Greeks              `json:"greeks"`
	CalculatedAt    time.Time           `json:"calculated_at"`
}

// Priced 理论价是否可用
func (r *PricingResult) Priced() bool {
	return r != nil && r.Greeks.Premium.Valid
}
