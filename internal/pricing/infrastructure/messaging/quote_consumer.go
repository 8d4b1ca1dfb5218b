package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/mq"
)

// QuoteMessage 行情 topic 上的消息：一档字段更新或订单簿快照。
// Value 为 null 表示该字段变为未知。
type QuoteMessage struct {
	InstrumentID string              `json:"instrument_id"`
	Field        domain.Level1Field  `json:"field,omitempty"`
	Value        decimal.NullDecimal `json:"value"`
	Depth        *domain.MarketDepth `json:"depth,omitempty"`
	Time         time.Time           `json:"time"`
}

// Validate 校验消息的最小字段
func (q QuoteMessage) Validate() error {
	if q.InstrumentID == "" {
		return fmt.Errorf("quote message without instrument_id")
	}
	if q.Field == "" && q.Depth == nil {
		return fmt.Errorf("quote message for %s carries neither field nor depth", q.InstrumentID)
	}
	switch q.Field {
	case "", domain.FieldImpliedVolatility, domain.FieldLastTradePrice, domain.FieldBestBidPrice, domain.FieldBestAskPrice:
	default:
		return fmt.Errorf("quote message for %s has unknown field %q", q.InstrumentID, q.Field)
	}
	return nil
}

// QuoteHandler 应用一条行情
type QuoteHandler func(ctx context.Context, quote QuoteMessage) error

// QuoteConsumer 把 Kafka 消息解码为 QuoteMessage 交给 handler
type QuoteConsumer struct {
	handle QuoteHandler
}

func NewQuoteConsumer(handle QuoteHandler) *QuoteConsumer {
	return &QuoteConsumer{handle: handle}
}

// Handle 满足 mq.Handler，解码或校验失败的消息返回错误进入死信队列
func (c *QuoteConsumer) Handle(ctx context.Context, msg *mq.Message) error {
	var quote QuoteMessage
	if err := msg.UnmarshalPayload(&quote); err != nil {
		return fmt.Errorf("decode quote at offset %d: %w", msg.Offset, err)
	}
	if quote.InstrumentID == "" {
		quote.InstrumentID = msg.Key
	}
	if err := quote.Validate(); err != nil {
		return err
	}
	if quote.Depth != nil && quote.Depth.InstrumentID == "" {
		quote.Depth.InstrumentID = quote.InstrumentID
	}
	return c.handle(ctx, quote)
}
