package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/db"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"github.com/wyfcoding/derivanalytics/pkg/metrics"
	"github.com/wyfcoding/derivanalytics/pkg/mq"
	"gorm.io/gorm"
)

// outbox 消息状态
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
)

// OutboxMessage outbox 表映射
type OutboxMessage struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	EventType  string    `gorm:"type:varchar(64);index"`
	MessageKey string    `gorm:"column:message_key;type:varchar(64)"`
	Payload    string    `gorm:"type:text"`
	Status     string    `gorm:"type:varchar(16);index;default:'pending'"`
	OccurredOn time.Time `gorm:"index"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "pricing_outbox_messages"
}

// OutboxEventPublisher 事件先写入 outbox 表，与定价结果共用 ctx 中的事务，
// 由 Relay 异步投递到 Kafka
type OutboxEventPublisher struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

var _ domain.EventPublisher = (*OutboxEventPublisher)(nil)

// NewOutboxEventPublisher 创建 outbox 发布者
func NewOutboxEventPublisher(gdb *gorm.DB, m *metrics.Metrics) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb, metrics: m}
}

func (p *OutboxEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.publishEvent(ctx, domain.OptionPricedEventType, event.InstrumentID, event)
}

func (p *OutboxEventPublisher) PublishBasketRevalued(ctx context.Context, event domain.BasketRevaluedEvent) error {
	return p.publishEvent(ctx, domain.BasketRevaluedEventType, event.BasketID, event)
}

func (p *OutboxEventPublisher) PublishVolatilityUpdated(ctx context.Context, event domain.VolatilityUpdatedEvent) error {
	return p.publishEvent(ctx, domain.VolatilityUpdatedEventType, event.InstrumentID, event)
}

func (p *OutboxEventPublisher) PublishStrikeRuleSaved(ctx context.Context, event domain.StrikeRuleSavedEvent) error {
	return p.publishEvent(ctx, domain.StrikeRuleSavedEventType, event.UnderlyingID, event)
}

func (p *OutboxEventPublisher) PublishPricingError(ctx context.Context, event domain.PricingErrorEvent) error {
	return p.publishEvent(ctx, domain.PricingErrorEventType, event.InstrumentID, event)
}

func (p *OutboxEventPublisher) publishEvent(ctx context.Context, eventType, key string, event any) error {
	env, err := newEnvelope(eventType, key, occurredOn(event), event)
	if err != nil {
		return err
	}
	return db.Conn(ctx, p.db).Create(toOutboxMessage(env)).Error
}

func toOutboxMessage(env Envelope) *OutboxMessage {
	return &OutboxMessage{
		ID:         env.EventID,
		EventType:  env.EventType,
		MessageKey: env.Key,
		Payload:    string(env.Payload),
		Status:     OutboxPending,
		OccurredOn: env.OccurredOn,
	}
}

func (m *OutboxMessage) envelope() Envelope {
	return Envelope{
		EventID:    m.ID,
		EventType:  m.EventType,
		Key:        m.MessageKey,
		OccurredOn: m.OccurredOn,
		Payload:    []byte(m.Payload),
	}
}

// Relay 按创建顺序投递待发送消息，单条失败时停止本轮并保留其余消息
func (p *OutboxEventPublisher) Relay(ctx context.Context, sender mq.Sender, topic string, batchSize int) (int, error) {
	var messages []OutboxMessage
	if err := p.db.WithContext(ctx).
		Where("status = ?", OutboxPending).
		Order("created_at asc").
		Limit(batchSize).
		Find(&messages).Error; err != nil {
		return 0, err
	}

	sent := 0
	for i := range messages {
		msg := &messages[i]
		err := sender.SendMessage(ctx, topic, msg.MessageKey, msg.envelope())
		p.metrics.IncEvent(msg.EventType, err)
		if err != nil {
			return sent, err
		}
		if err := p.db.WithContext(ctx).Model(msg).Update("status", OutboxSent).Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// RunRelay 周期性投递直到 ctx 取消
func (p *OutboxEventPublisher) RunRelay(ctx context.Context, sender mq.Sender, topic string, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.Relay(ctx, sender, topic, batchSize); err != nil {
				logger.Warn(ctx, "outbox relay failed", "sent", n, "error", err)
			} else if n > 0 {
				logger.Debug(ctx, "outbox relayed", "sent", n)
			}
		}
	}
}

// CleanupProcessedMessages 清理已投递的消息
func (p *OutboxEventPublisher) CleanupProcessedMessages(ctx context.Context, before time.Time) (int64, error) {
	tx := p.db.WithContext(ctx).Where("status = ? AND updated_at < ?", OutboxSent, before).Delete(&OutboxMessage{})
	return tx.RowsAffected, tx.Error
}
