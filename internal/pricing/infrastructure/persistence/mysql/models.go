package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
)

// InstrumentModel 证券目录表映射
type InstrumentModel struct {
	ID                uint                `gorm:"primaryKey;autoIncrement"`
	CreatedAt         time.Time           `gorm:"column:created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at"`
	InstrumentID      string              `gorm:"column:instrument_id;type:varchar(64);uniqueIndex;not null"`
	Code              string              `gorm:"column:code;type:varchar(64)"`
	Type              string              `gorm:"column:type;type:varchar(16);not null"`
	UnderlyingID      string              `gorm:"column:underlying_id;type:varchar(64);index"`
	Strike            decimal.NullDecimal `gorm:"column:strike;type:decimal(32,18)"`
	OptionType        string              `gorm:"column:option_type;type:varchar(8)"`
	ExpiryDate        *time.Time          `gorm:"column:expiry_date"`
	BoardCode         string              `gorm:"column:board_code;type:varchar(32)"`
	BoardExpirySecond int64               `gorm:"column:board_expiry_second"`
}

func (InstrumentModel) TableName() string { return "instruments" }

// PricingResultModel 定价结果表映射，无值的希腊字母存 NULL
type PricingResultModel struct {
	ID              uint                `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time           `gorm:"column:created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at"`
	InstrumentID    string              `gorm:"column:instrument_id;type:varchar(64);index:idx_instrument_calculated,priority:1;not null"`
	UnderlyingID    string              `gorm:"column:underlying_id;type:varchar(64)"`
	PricingModel    string              `gorm:"column:pricing_model;type:varchar(32)"`
	UnderlyingPrice decimal.NullDecimal `gorm:"column:underlying_price;type:decimal(32,18)"`
	Volatility      decimal.Decimal     `gorm:"column:volatility;type:decimal(32,18);not null"`
	RiskFree        decimal.Decimal     `gorm:"column:risk_free;type:decimal(32,18);not null"`
	Dividend        decimal.Decimal     `gorm:"column:dividend;type:decimal(32,18);not null"`
	Premium         decimal.NullDecimal `gorm:"column:premium;type:decimal(32,18)"`
	Delta           decimal.NullDecimal `gorm:"column:delta;type:decimal(32,18)"`
	Gamma           decimal.NullDecimal `gorm:"column:gamma;type:decimal(32,18)"`
	Vega            decimal.NullDecimal `gorm:"column:vega;type:decimal(32,18)"`
	Theta           decimal.NullDecimal `gorm:"column:theta;type:decimal(32,18)"`
	Rho             decimal.NullDecimal `gorm:"column:rho;type:decimal(32,18)"`
	CalculatedAt    time.Time           `gorm:"column:calculated_at;index:idx_instrument_calculated,priority:2;not null"`
}

func (PricingResultModel) TableName() string { return "pricing_results" }

// StrikeRuleModel 行权价规则参数，Rule 为文本形式，如 "offset|0:1"
type StrikeRuleModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
	UnderlyingID string    `gorm:"column:underlying_id;type:varchar(64);uniqueIndex:uk_underlying_name,priority:1;not null"`
	Name         string    `gorm:"column:name;type:varchar(64);uniqueIndex:uk_underlying_name,priority:2;not null"`
	Rule         string    `gorm:"column:rule;type:varchar(128);not null"`
}

func (StrikeRuleModel) TableName() string { return "strike_rules" }

// Models 需要迁移的全部表
func Models() []any {
	return []any{&InstrumentModel{}, &PricingResultModel{}, &StrikeRuleModel{}}
}

// mapping helpers

func toInstrumentModel(inst *domain.Instrument) *InstrumentModel {
	if inst == nil {
		return nil
	}
	m := &InstrumentModel{
		InstrumentID: inst.ID,
		Code:         inst.Code,
		Type:         string(inst.Type),
		UnderlyingID: inst.UnderlyingID,
		Strike:       inst.Strike,
		OptionType:   string(inst.OptionType),
		ExpiryDate:   inst.ExpiryDate,
	}
	if inst.Board != nil {
		m.BoardCode = inst.Board.Code
		m.BoardExpirySecond = int64(inst.Board.ExpiryTime / time.Second)
	}
	return m
}

func toInstrument(m *InstrumentModel) *domain.Instrument {
	if m == nil {
		return nil
	}
	inst := &domain.Instrument{
		ID:           m.InstrumentID,
		Code:         m.Code,
		Type:         domain.SecurityType(m.Type),
		UnderlyingID: m.UnderlyingID,
		Strike:       m.Strike,
		OptionType:   domain.OptionType(m.OptionType),
	}
	if m.ExpiryDate != nil {
		expiry := m.ExpiryDate.UTC()
		inst.ExpiryDate = &expiry
	}
	if m.BoardCode != "" || m.BoardExpirySecond != 0 {
		inst.Board = &domain.ExchangeBoard{
			Code:       m.BoardCode,
			ExpiryTime: time.Duration(m.BoardExpirySecond) * time.Second,
		}
	}
	return inst
}

func toPricingResultModel(res *domain.PricingResult) *PricingResultModel {
	if res == nil {
		return nil
	}
	return &PricingResultModel{
		ID:              res.ID,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
		InstrumentID:    res.InstrumentID,
		UnderlyingID:    res.UnderlyingID,
		PricingModel:    string(res.PricingModel),
		UnderlyingPrice: res.UnderlyingPrice,
		Volatility:      res.Volatility,
		RiskFree:        res.RiskFree,
		Dividend:        res.Dividend,
		Premium:         res.Greeks.Premium,
		Delta:           res.Greeks.Delta,
		Gamma:           res.Greeks.Gamma,
		Vega:            res.Greeks.Vega,
		Theta:           res.Greeks.Theta,
		Rho:             res.Greeks.Rho,
		CalculatedAt:    res.CalculatedAt,
	}
}

func toPricingResult(m *PricingResultModel) *domain.PricingResult {
	if m == nil {
		return nil
	}
	return &domain.PricingResult{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		InstrumentID:    m.InstrumentID,
		UnderlyingID:    m.UnderlyingID,
		PricingModel:    domain.ModelKind(m.PricingModel),
		UnderlyingPrice: m.UnderlyingPrice,
		Volatility:      m.Volatility,
		RiskFree:        m.RiskFree,
		Dividend:        m.Dividend,
		Greeks: domain.Greeks{
			Premium: m.Premium,
			Delta:   m.Delta,
			Gamma:   m.Gamma,
			Vega:    m.Vega,
			Theta:   m.Theta,
			Rho:     m.Rho,
		},
		CalculatedAt: m.CalculatedAt,
	}
}

func toStrikeRuleRecord(m *StrikeRuleModel) (*domain.StrikeRuleRecord, error) {
	spec, err := domain.ParseStrikeRule(m.Rule)
	if err != nil {
		return nil, err
	}
	return &domain.StrikeRuleRecord{
		UnderlyingID: m.UnderlyingID,
		Name:         m.Name,
		Spec:         spec,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}
