// 包 衍生品分析引擎的领域模型：期权定价、希腊字母、篮子聚合、行权价选择与合成头寸。
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType 证券类型
type SecurityType string

const (
	SecurityTypeStock  SecurityType = "STOCK"  // 股票
	SecurityTypeFuture SecurityType = "FUTURE" // 期货
	SecurityTypeIndex  SecurityType = "INDEX"  // 指数
	SecurityTypeOption SecurityType = "OPTION" // 期权
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// Validate 校验期权类型
func (t OptionType) Validate() error {
	switch t {
	case OptionTypeCall, OptionTypePut:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrMissingOptionType, string(t))
	}
}

// Invert 返回相反的期权类型
func (t OptionType) Invert() OptionType {
	if t == OptionTypeCall {
		return OptionTypePut
	}
	return OptionTypeCall
}

// sign 看涨 +1，看跌 -1
func (t OptionType) sign() float64 {
	if t == OptionTypePut {
		return -1
	}
	return 1
}

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Invert 返回相反方向
func (s Side) Invert() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Validate 校验方向
func (s Side) Validate() error {
	switch s {
	case SideBuy, SideSell:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSide, string(s))
	}
}

// ExchangeBoard 交易板块，提供到期日当天的默认到期时刻
type ExchangeBoard struct {
	Code       string        `json:"code"`
	ExpiryTime time.Duration `json:"expiry_time"` // 自午夜起的偏移
}

// Instrument 证券元数据。期权须具备行权价、期权类型、到期日与标的引用。
type Instrument struct {
	ID           string              `json:"id"`
	Code         string              `json:"code"`
	Type         SecurityType        `json:"type"`
	UnderlyingID string              `json:"underlying_id,omitempty"`
	Strike       decimal.NullDecimal `json:"strike"`
	OptionType   OptionType          `json:"option_type,omitempty"`
	ExpiryDate   *time.Time          `json:"expiry_date,omitempty"`
	Board        *ExchangeBoard      `json:"board,omitempty"`
}

// IsOption 是否期权
func (i *Instrument) IsOption() bool {
	return i != nil && i.Type == SecurityTypeOption
}

// CheckOption 校验期权定价所需的合约属性
func (i *Instrument) CheckOption() error {
	if i == nil {
		return ErrNilInstrument
	}
	if i.Type != SecurityTypeOption {
		return fmt.Errorf("%w: %s is %s", ErrNotOption, i.ID, i.Type)
	}
	if err := i.OptionType.Validate(); err != nil {
		return fmt.Errorf("option %s: %w", i.ID, err)
	}
	if i.ExpiryDate == nil {
		return fmt.Errorf("%w: %s", ErrMissingExpiry, i.ID)
	}
	if i.UnderlyingID == "" {
		return fmt.Errorf("%w: %s", ErrMissingUnderlying, i.ID)
	}
	return nil
}

// CheckStrike 返回正的行权价
func (i *Instrument) CheckStrike() (decimal.Decimal, error) {
	if !i.Strike.Valid {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingStrike, i.ID)
	}
	if !i.Strike.Decimal.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s has strike %s", ErrInvalidStrike, i.ID, i.Strike.Decimal)
	}
	return i.Strike.Decimal, nil
}

// ExpirationTime 返回合约的绝对到期时刻。到期日为零点时叠加板块的到期时刻。
func ExpirationTime(inst *Instrument) (time.Time, error) {
	if inst == nil {
		return time.Time{}, ErrNilInstrument
	}
	if inst.ExpiryDate == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingExpiry, inst.ID)
	}
	expiry := *inst.ExpiryDate
	h, m, s := expiry.Clock()
	if h != 0 || m != 0 || s != 0 || expiry.Nanosecond() != 0 {
		return expiry, nil
	}
	if inst.Board == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingBoard, inst.ID)
	}
	return expiry.Add(inst.Board.ExpiryTime), nil
}

// IsExpired 判断合约在 now 时刻是否已到期
func IsExpired(inst *Instrument, now time.Time) (bool, error) {
	expiry, err := ExpirationTime(inst)
	if err != nil {
		return false, err
	}
	return !expiry.After(now), nil
}

// Position 持仓记录，CurrentValue 带符号（多头为正，空头为负）
type Position struct {
	InstrumentID  string          `json:"instrument_id"`
	PortfolioName string          `json:"portfolio_name,omitempty"`
	CurrentValue  decimal.Decimal `json:"current_value"`
}

// Level1Field 一级行情字段
type Level1Field string

const (
	FieldImpliedVolatility Level1Field = "IMPLIED_VOLATILITY" // 隐含波动率（百分比）
	FieldLastTradePrice    Level1Field = "LAST_TRADE_PRICE"
	FieldBestBidPrice      Level1Field = "BEST_BID_PRICE"
	FieldBestAskPrice      Level1Field = "BEST_ASK_PRICE"
)

// Quote 报价档位
type Quote struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// MarketDepth 订单簿快照
type MarketDepth struct {
	InstrumentID   string    `json:"instrument_id"`
	Bids           []Quote   `json:"bids"`
	Asks           []Quote   `json:"asks"`
	LastChangeTime time.Time `json:"last_change_time"`
}

// Greeks 希腊字母与理论价，缺失值保持 Valid=false
type Greeks struct {
	Premium decimal.NullDecimal `json:"premium"`
	Delta   decimal.NullDecimal `json:"delta"`
	Gamma   decimal.NullDecimal `json:"gamma"`
	Vega    decimal.NullDecimal `json:"vega"`
	Theta   decimal.NullDecimal `json:"theta"`
	Rho     decimal.NullDecimal `json:"rho"`
}
