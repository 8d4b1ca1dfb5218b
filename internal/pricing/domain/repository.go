package domain

import (
	"context"
	"time"
)

// PricingRepository 定价结果仓储
type PricingRepository interface {
	Save(ctx context.Context, result *PricingResult) error
	GetLatest(ctx context.Context, instrumentID string) (*PricingResult, error)
	GetHistory(ctx context.Context, instrumentID string, limit int) ([]*PricingResult, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PricingCache 定价结果缓存
type PricingCache interface {
	Get(ctx context.Context, instrumentID string) (*PricingResult, error)
	Set(ctx context.Context, result *PricingResult) error
	Delete(ctx context.Context, instrumentID string) error
}

// InstrumentRepository 证券目录仓储
type InstrumentRepository interface {
	Save(ctx context.Context, inst *Instrument) error
	Get(ctx context.Context, id string) (*Instrument, error)
	List(ctx context.Context) ([]*Instrument, error)
	Delete(ctx context.Context, id string) error
}

// StrikeRuleRecord 行权价规则的持久化记录
type StrikeRuleRecord struct {
	UnderlyingID string         `json:"underlying_id"`
	Name         string         `json:"name"`
	Spec         StrikeRuleSpec `json:"spec"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// StrikeRuleRepository 行权价规则参数仓储
type StrikeRuleRepository interface {
	Save(ctx context.Context, record *StrikeRuleRecord) error
	Get(ctx context.Context, underlyingID, name string) (*StrikeRuleRecord, error)
	ListByUnderlying(ctx context.Context, underlyingID string) ([]*StrikeRuleRecord, error)
}
