// Package config 定价服务配置：框架核心配置加上定价引擎参数
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	configpkg "github.com/wyfcoding/pkg/config"
)

// 定价引擎默认值
const (
	DefaultModel        = "BLACK_SCHOLES"
	DefaultEventTopic   = "derivanalytics.events"
	DefaultQuoteTopic   = "derivanalytics.quotes"
	DefaultResultTTL    = 15 * time.Minute
	DefaultHistoryLimit = 100
)

// 事件投递方式
const (
	// DeliveryOutbox 与业务数据同事务写入 outbox，后台投递到 Kafka
	DeliveryOutbox = "outbox"
	// DeliveryDirect 直接发送到 Kafka，不经过 outbox
	DeliveryDirect = "direct"
	// DeliveryLog 只记录日志
	DeliveryLog = "log"
)

// Config 服务配置，由 app.Builder 加载并校验核心部分
type Config struct {
	configpkg.Config `mapstructure:",squash"`
	Analytics        AnalyticsConfig `mapstructure:"analytics" toml:"analytics"`
}

// KafkaEnabled 是否配置了 Kafka broker
func (c *Config) KafkaEnabled() bool {
	return len(c.MessageQueue.Kafka.Brokers) > 0
}

// Validate 校验引擎参数及其与消息配置的组合
func (c *Config) Validate() error {
	if err := c.Analytics.Validate(); err != nil {
		return err
	}
	if c.Analytics.EventDelivery == DeliveryDirect && !c.KafkaEnabled() {
		return fmt.Errorf("analytics.event_delivery %q requires messagequeue.kafka.brokers", DeliveryDirect)
	}
	return nil
}

// AnalyticsConfig 定价引擎默认参数
type AnalyticsConfig struct {
	// 无风险利率与分红率（小数形式的字符串，避免浮点误差）
	RiskFree string `mapstructure:"risk_free" toml:"risk_free"`
	Dividend string `mapstructure:"dividend" toml:"dividend"`
	// 取整精度，未配置或 -1 表示不取整
	RoundDecimals *int `mapstructure:"round_decimals" toml:"round_decimals"`
	// 默认模型：BLACK_SCHOLES 或 BLACK_76
	DefaultModel string `mapstructure:"default_model" toml:"default_model"`
	// 事件与行情 topic
	EventTopic string `mapstructure:"event_topic" toml:"event_topic"`
	QuoteTopic string `mapstructure:"quote_topic" toml:"quote_topic"`
	// 事件投递方式：outbox、direct 或 log
	EventDelivery string `mapstructure:"event_delivery" toml:"event_delivery"`
	// 定价结果缓存时间
	ResultTTL time.Duration `mapstructure:"result_ttl" toml:"result_ttl"`
	// 历史查询的最大条数
	HistoryLimit int `mapstructure:"history_limit" toml:"history_limit"`
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *AnalyticsConfig) ApplyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.EventTopic == "" {
		c.EventTopic = DefaultEventTopic
	}
	if c.QuoteTopic == "" {
		c.QuoteTopic = DefaultQuoteTopic
	}
	if c.EventDelivery == "" {
		c.EventDelivery = DeliveryOutbox
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = DefaultResultTTL
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
}

// Validate 校验引擎参数
func (c *AnalyticsConfig) Validate() error {
	for name, s := range map[string]string{"risk_free": c.RiskFree, "dividend": c.Dividend} {
		if s == "" {
			continue
		}
		if _, err := decimal.NewFromString(s); err != nil {
			return fmt.Errorf("analytics.%s: %w", name, err)
		}
	}
	switch c.EventDelivery {
	case "", DeliveryOutbox, DeliveryDirect, DeliveryLog:
	default:
		return fmt.Errorf("analytics.event_delivery must be outbox, direct or log: %q", c.EventDelivery)
	}
	if c.Decimals() < -1 {
		return fmt.Errorf("analytics.round_decimals must be >= -1: %d", c.Decimals())
	}
	if c.ResultTTL < 0 {
		return fmt.Errorf("analytics.result_ttl must not be negative")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("analytics.history_limit must not be negative")
	}
	return nil
}

// Decimals 取整精度，-1 表示不取整
func (c AnalyticsConfig) Decimals() int {
	if c.RoundDecimals == nil {
		return -1
	}
	return *c.RoundDecimals
}

// RiskFreeRate 解析后的无风险利率
func (c AnalyticsConfig) RiskFreeRate() decimal.Decimal {
	return parseDecimalOrZero(c.RiskFree)
}

// DividendYield 解析后的分红率
func (c AnalyticsConfig) DividendYield() decimal.Decimal {
	return parseDecimalOrZero(c.Dividend)
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
