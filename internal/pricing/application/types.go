package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

// ModelParams 单次计算对默认参数的覆盖，零值表示沿用默认
type ModelParams struct {
	Model         string              `json:"model"`
	RiskFree      decimal.NullDecimal `json:"risk_free"`
	Dividend      decimal.NullDecimal `json:"dividend"`
	RoundDecimals *int                `json:"round_decimals,omitempty"`
}

// PriceOptionCommand 期权定价命令，结果会落库并发布事件
type PriceOptionCommand struct {
	InstrumentID string              `json:"instrument_id"`
	Params       ModelParams         `json:"params"`
	Deviation    decimal.NullDecimal `json:"deviation"`    // 小数形式，未给出时取隐含波动率 / 100
	AssetPrice   decimal.NullDecimal `json:"asset_price"`  // 未给出时取标的最新成交价
	At           *time.Time          `json:"at,omitempty"` // 估值时刻，默认当前
}

// GreeksQuery 只计算、不落库
type GreeksQuery = PriceOptionCommand

// ImpliedVolatilityQuery 由期权价格反解隐含波动率
type ImpliedVolatilityQuery struct {
	InstrumentID string          `json:"instrument_id"`
	Params       ModelParams     `json:"params"`
	Premium      decimal.Decimal `json:"premium"`
	At           *time.Time      `json:"at,omitempty"`
}

// UpsertInstrumentCommand 新增或替换证券
type UpsertInstrumentCommand struct {
	Instrument domain.Instrument `json:"instrument"`
}

// ApplyQuoteCommand 一档字段更新或订单簿快照，Value 无效时清除该字段
type ApplyQuoteCommand struct {
	InstrumentID string              `json:"instrument_id"`
	Field        domain.Level1Field  `json:"field,omitempty"`
	Value        decimal.NullDecimal `json:"value"`
	Depth        *domain.MarketDepth `json:"depth,omitempty"`
}

// CreateBasketCommand 创建篮子，ID 为空时自动生成
type CreateBasketCommand struct {
	ID            string              `json:"id"`
	UnderlyingID  string              `json:"underlying_id"`
	RiskFree      decimal.NullDecimal `json:"risk_free"`
	Dividend      decimal.NullDecimal `json:"dividend"`
	RoundDecimals *int                `json:"round_decimals,omitempty"`
}

// AddBasketLegCommand 向篮子加入期权
type AddBasketLegCommand struct {
	BasketID     string `json:"basket_id"`
	InstrumentID string `json:"instrument_id"`
	Model        string `json:"model"`
}

// SaveStrikeRuleCommand 保存命名的行权价规则，Rule 形如 "offset|0:1"
type SaveStrikeRuleCommand struct {
	UnderlyingID string `json:"underlying_id"`
	Name         string `json:"name"`
	Rule         string `json:"rule"`
}

// SelectStrikesQuery 按规则挑选行权价，Rule 与 RuleName 二选一
type SelectStrikesQuery struct {
	UnderlyingID string     `json:"underlying_id"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Rule         string     `json:"rule"`
	RuleName     string     `json:"rule_name"`
}

// SyntheticQuery 合成期权头寸
type SyntheticQuery struct {
	InstrumentID string      `json:"instrument_id"`
	Side         domain.Side `json:"side"`
}

// UnderlyingSyntheticQuery 合成标的头寸
type UnderlyingSyntheticQuery struct {
	UnderlyingID string          `json:"underlying_id"`
	Strike       decimal.Decimal `json:"strike"`
	Expiry       time.Time       `json:"expiry"`
	Side         domain.Side     `json:"side"`
}

// BasketDTO 篮子概要
type BasketDTO struct {
	ID            string          `json:"id"`
	UnderlyingID  string          `json:"underlying_id,omitempty"`
	Legs          []BasketLegDTO  `json:"legs"`
	RiskFree      decimal.Decimal `json:"risk_free"`
	Dividend      decimal.Decimal `json:"dividend"`
	RoundDecimals int             `json:"round_decimals"`
}

// BasketLegDTO 篮子中的一条腿
type BasketLegDTO struct {
	InstrumentID string           `json:"instrument_id"`
	Model        domain.ModelKind `json:"model"`
	Position     decimal.Decimal  `json:"position"`
}

// BasketGreeksDTO 篮子的持仓加权希腊字母
type BasketGreeksDTO struct {
	BasketID     string        `json:"basket_id"`
	UnderlyingID string        `json:"underlying_id"`
	Legs         int           `json:"legs"`
	Greeks       domain.Greeks `json:"greeks"`
	CalculatedAt time.Time     `json:"calculated_at"`
}

// MoneynessDTO 价内、价外与平值划分
type MoneynessDTO struct {
	UnderlyingID  string               `json:"underlying_id"`
	AssetPrice    decimal.Decimal      `json:"asset_price"`
	InTheMoney    []*domain.Instrument `json:"in_the_money"`
	OutOfTheMoney []*domain.Instrument `json:"out_of_the_money"`
	AtTheMoney    []*domain.Instrument `json:"at_the_money"`
}

// OptionValueDTO 内在价值与时间价值，行情未知时无值
type OptionValueDTO struct {
	InstrumentID string              `json:"instrument_id"`
	Intrinsic    decimal.NullDecimal `json:"intrinsic"`
	TimeValue    decimal.NullDecimal `json:"time_value"`
}
