// Package metrics 定价引擎的业务指标：计算、行情、事件与缓存
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "derivanalytics"

// 计算结果分类
const (
	OutcomeOK      = "ok"
	OutcomeNoValue = "no_value"
	OutcomeError   = "error"
)

// Registry 创建并注册指标向量，由服务框架的 *metrics.Metrics 提供
type Registry interface {
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
}

// Metrics 指标集合，nil 接收者上的记录方法均为空操作
type Metrics struct {
	// 定价计算，按操作与结果分类
	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration *prometheus.HistogramVec

	// 篮子腿数
	BasketLegs *prometheus.GaugeVec
	// 已应用的一档行情
	QuotesApplied *prometheus.CounterVec
	// 已发布的领域事件
	EventsPublished *prometheus.CounterVec
	// 定价结果缓存命中
	CacheRequests *prometheus.CounterVec
}

// New 在 reg 中注册全部业务指标，同一 reg 重复调用会 panic
func New(reg Registry, serviceName string) *Metrics {
	return &Metrics{
		CalculationsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "calculations_total",
			Help:      "Total pricing calculations by operation and outcome",
		}, []string{"operation", "outcome"}),
		CalculationDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "calculation_duration_seconds",
			Help:      "Pricing calculation duration in seconds",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"operation"}),

		BasketLegs: reg.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "basket_legs",
			Help:      "Number of legs per basket",
		}, []string{"basket"}),
		QuotesApplied: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "quotes_applied_total",
			Help:      "Level1 quotes applied by field",
		}, []string{"field"}),
		EventsPublished: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "events_published_total",
			Help:      "Domain events published by type and outcome",
		}, []string{"event_type", "outcome"}),
		CacheRequests: reg.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cache_requests_total",
			Help:      "Pricing result cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveCalculation 记录一次定价计算
func (m *Metrics) ObserveCalculation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CalculationsTotal.WithLabelValues(operation, outcome).Inc()
	m.CalculationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetBasketLegs 更新篮子腿数
func (m *Metrics) SetBasketLegs(basketID string, legs int) {
	if m == nil {
		return
	}
	m.BasketLegs.WithLabelValues(basketID).Set(float64(legs))
}

// DeleteBasket 移除篮子的指标序列
func (m *Metrics) DeleteBasket(basketID string) {
	if m == nil {
		return
	}
	m.BasketLegs.DeleteLabelValues(basketID)
}

// IncQuote 记录一次行情更新
func (m *Metrics) IncQuote(field string) {
	if m == nil {
		return
	}
	m.QuotesApplied.WithLabelValues(field).Inc()
}

// IncEvent 记录一次事件发布
func (m *Metrics) IncEvent(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// IncCache 记录缓存查询结果：hit, miss, error
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
