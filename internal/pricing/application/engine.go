package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/metrics"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPriceUnavailable = errors.New("asset price unavailable")
	ErrRuleNotFound     = errors.New("strike rule not found")
)

// InstrumentCatalog 可写的证券目录
type InstrumentCatalog interface {
	domain.SecurityProvider
	Put(inst *domain.Instrument)
	Remove(id string) bool
	All() []*domain.Instrument
}

// QuoteBook 可写的一级行情与订单簿
type QuoteBook interface {
	domain.MarketDataProvider
	Set(instrumentID string, field domain.Level1Field, value decimal.Decimal) decimal.NullDecimal
	Clear(instrumentID string, field domain.Level1Field)
	SetDepth(depth *domain.MarketDepth)
}

// PositionLedger 可写的持仓簿
type PositionLedger interface {
	domain.PositionProvider
	Set(p domain.Position)
}

// TxRunner 在同一事务内执行 fn，事务通过 ctx 传递
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Defaults 未被单次调用覆盖时使用的模型参数
type Defaults struct {
	Model         domain.ModelKind
	RiskFree      decimal.Decimal
	Dividend      decimal.Decimal
	RoundDecimals int
	HistoryLimit  int
}

// Dependencies 应用层依赖。Catalog、Quotes、Positions 必填，其余为 nil 时相应功能降级。
type Dependencies struct {
	Catalog   InstrumentCatalog
	Quotes    QuoteBook
	Positions PositionLedger

	Instruments domain.InstrumentRepository
	Results     domain.PricingRepository
	Cache       domain.PricingCache
	StrikeRules domain.StrikeRuleRepository
	Publisher   domain.EventPublisher
	Tx          TxRunner
	Metrics     *metrics.Metrics

	Defaults Defaults
	Clock    func() time.Time
}

func (d *Dependencies) validate() error {
	if d.Catalog == nil || d.Quotes == nil || d.Positions == nil {
		return fmt.Errorf("%w: catalog, quotes and positions are required", domain.ErrNilProvider)
	}
	if d.Defaults.Model == "" {
		d.Defaults.Model = domain.ModelBlackScholes
	}
	if _, err := d.Defaults.Model.Formula(); err != nil {
		return err
	}
	if d.Defaults.RoundDecimals < -1 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRoundDecimals, d.Defaults.RoundDecimals)
	}
	if d.Defaults.HistoryLimit <= 0 {
		d.Defaults.HistoryLimit = 100
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Tx == nil {
		d.Tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return nil
}

// engine 命令与查询服务共享的内存状态
type engine struct {
	Dependencies

	mu      sync.RWMutex
	baskets map[string]*domain.Basket
	rules   map[string]map[string]*domain.StrikeRuleRecord
}

func newEngine(deps Dependencies) (*engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &engine{
		Dependencies: deps,
		baskets:      make(map[string]*domain.Basket),
		rules:        make(map[string]map[string]*domain.StrikeRuleRecord),
	}, nil
}

func (e *engine) now(at *time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return e.Clock()
}

func (e *engine) instrument(id string) (*domain.Instrument, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: instrument id is required", ErrInvalidArgument)
	}
	inst, ok := e.Catalog.LookupByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	return inst, nil
}

// model 按覆盖参数构建单期权模型。期货模型未显式给出分红时取 0。
func (e *engine) model(optionID string, p ModelParams) (*domain.BlackScholes, error) {
	option, err := e.instrument(optionID)
	if err != nil {
		return nil, err
	}
	kind := e.Defaults.Model
	if p.Model != "" {
		if kind, err = domain.ParseModelKind(p.Model); err != nil {
			return nil, err
		}
	}
	m, err := domain.NewModel(kind, option, e.Catalog, e.Quotes)
	if err != nil {
		return nil, err
	}

	m.SetRiskFree(e.Defaults.RiskFree)
	if p.RiskFree.Valid {
		m.SetRiskFree(p.RiskFree.Decimal)
	}
	dividend := e.Defaults.Dividend
	if kind == domain.ModelBlack76 {
		dividend = decimal.Zero
	}
	if p.Dividend.Valid {
		dividend = p.Dividend.Decimal
	}
	if err := m.SetDividend(dividend); err != nil {
		return nil, err
	}
	rd := e.Defaults.RoundDecimals
	if p.RoundDecimals != nil {
		rd = *p.RoundDecimals
	}
	if err := m.SetRoundDecimals(rd); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *engine) basket(id string) (*domain.Basket, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.baskets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBasketNotFound, id)
	}
	return b, nil
}

func (e *engine) basketDTO(id string, b *domain.Basket) *BasketDTO {
	positions := e.Positions.Positions()
	dto := &BasketDTO{
		ID:            id,
		Legs:          []BasketLegDTO{},
		RiskFree:      b.RiskFree(),
		Dividend:      b.Dividend(),
		RoundDecimals: b.RoundDecimals(),
	}
	if asset, err := b.UnderlyingAsset(); err == nil {
		dto.UnderlyingID = asset.ID
	}
	for _, leg := range b.Legs() {
		dto.Legs = append(dto.Legs, BasketLegDTO{
			InstrumentID: leg.Option().ID,
			Model:        leg.Kind(),
			Position:     domain.PositionSize(positions, leg.Option().ID),
		})
	}
	return dto
}

func (e *engine) cacheRule(rec *domain.StrikeRuleRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	byName, ok := e.rules[rec.UnderlyingID]
	if !ok {
		byName = make(map[string]*domain.StrikeRuleRecord)
		e.rules[rec.UnderlyingID] = byName
	}
	byName[rec.Name] = rec
}

// rule 先查内存，再查仓储
func (e *engine) rule(ctx context.Context, underlyingID, name string) (*domain.StrikeRuleRecord, error) {
	e.mu.RLock()
	rec, ok := e.rules[underlyingID][name]
	e.mu.RUnlock()
	if ok {
		return rec, nil
	}
	if e.StrikeRules != nil {
		rec, err := e.StrikeRules.Get(ctx, underlyingID, name)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			e.cacheRule(rec)
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrRuleNotFound, underlyingID, name)
}

func (e *engine) memoryRules(underlyingID string) []*domain.StrikeRuleRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.StrikeRuleRecord, 0, len(e.rules[underlyingID]))
	for _, rec := range e.rules[underlyingID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *engine) observe(operation string, start time.Time, valid bool, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case !valid:
		outcome = metrics.OutcomeNoValue
	}
	e.Metrics.ObserveCalculation(operation, outcome, time.Since(start))
}

func allValid(g domain.Greeks) bool {
	return g.Premium.Valid && g.Delta.Valid && g.Gamma.Valid && g.Vega.Valid && g.Theta.Valid && g.Rho.Valid
}

// nopPublisher 未配置发布者时丢弃事件
type nopPublisher struct{}

func (nopPublisher) PublishOptionPriced(context.Context, domain.OptionPricedEvent) error { return nil }

func (nopPublisher) PublishBasketRevalued(context.Context, domain.BasketRevaluedEvent) error {
	return nil
}

func (nopPublisher) PublishVolatilityUpdated(context.Context, domain.VolatilityUpdatedEvent) error {
	return nil
}

func (nopPublisher) PublishStrikeRuleSaved(context.Context, domain.StrikeRuleSavedEvent) error {
	return nil
}

func (nopPublisher) PublishPricingError(context.Context, domain.PricingErrorEvent) error { return nil }
