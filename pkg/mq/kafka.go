// Package mq 提供 Kafka producer/consumer 通用实现，支持重试与死信队列
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	configpkg "github.com/wyfcoding/pkg/config"
)

// Sender 发送 JSON 消息，事件发布方只依赖该接口
type Sender interface {
	SendMessage(ctx context.Context, topic, key string, value any) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer messageWriter
}

var _ Sender = (*KafkaProducer)(nil)

// NewProducer 创建 Kafka 生产者，required_acks 为 0 时等待全部副本确认
func NewProducer(cfg configpkg.KafkaConfig) *KafkaProducer {
	acks := kafka.RequiredAcks(cfg.RequiredAcks)
	if cfg.RequiredAcks == 0 {
		acks = kafka.RequireAll
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           acks,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		Async:                  cfg.Async,
	}
	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer}
}

// SendMessage 发送单条 JSON 消息，同一 key 落在同一分区
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	logger.Debug(ctx, "Kafka message sent", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// Message Kafka 消息结构
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time
}

// UnmarshalPayload 将消息值解析为 JSON
func (m *Message) UnmarshalPayload(dest any) error {
	return json.Unmarshal(m.Value, dest)
}

// Handler 处理一条消息，返回错误时消息转入死信队列
type Handler func(ctx context.Context, msg *Message) error

// KafkaConsumer Kafka 消费者
type KafkaConsumer struct {
	reader messageReader
	topic  string
	dlq    *DeadLetterQueue
}

// NewConsumer 创建 Kafka 消费者，从最新偏移开始
func NewConsumer(cfg configpkg.KafkaConfig, topic string) *KafkaConsumer {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10e6
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.LastOffset,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       maxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
	})
	logger.Info(context.Background(), "Kafka consumer created successfully",
		"brokers", cfg.Brokers,
		"topic", topic,
		"group_id", cfg.GroupID,
	)
	return &KafkaConsumer{reader: reader, topic: topic}
}

// WithDeadLetterQueue 处理失败的消息写入死信队列
func (kc *KafkaConsumer) WithDeadLetterQueue(dlq *DeadLetterQueue) *KafkaConsumer {
	kc.dlq = dlq
	return kc
}

// Run 循环拉取并处理消息，直到 ctx 取消。
// 每条消息处理后提交偏移，处理失败的消息写入死信队列后同样提交。
func (kc *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		km, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error(ctx, "Failed to fetch Kafka message", "topic", kc.topic, "error", err)
			return err
		}

		msg := &Message{
			Topic:     km.Topic,
			Partition: km.Partition,
			Offset:    km.Offset,
			Key:       string(km.Key),
			Value:     km.Value,
			Time:      km.Time,
		}
		if herr := handle(ctx, msg); herr != nil {
			logger.Warn(ctx, "Kafka message handling failed", "topic", msg.Topic, "offset", msg.Offset, "error", herr)
			if kc.dlq != nil {
				if err := kc.dlq.Send(ctx, msg, "handler_error", herr); err != nil {
					return err
				}
			}
		}
		if err := kc.reader.CommitMessages(ctx, km); err != nil {
			logger.Error(ctx, "Failed to commit Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			return err
		}
	}
}

// Close 关闭消费者
func (kc *KafkaConsumer) Close() error {
	return kc.reader.Close()
}

// DeadLetterQueue 死信队列处理
type DeadLetterQueue struct {
	sender Sender
	topic  string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(sender Sender, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{sender: sender, topic: topic}
}

// DeadLetter 死信消息体
type DeadLetter struct {
	OriginalTopic  string    `json:"original_topic"`
	OriginalKey    string    `json:"original_key"`
	OriginalValue  string    `json:"original_value"`
	OriginalOffset int64     `json:"original_offset"`
	FailureReason  string    `json:"failure_reason"`
	FailureError   string    `json:"failure_error"`
	FailedAt       time.Time `json:"failed_at"`
}

// Send 发送消息到死信队列
func (dlq *DeadLetterQueue) Send(ctx context.Context, original *Message, reason string, err error) error {
	return dlq.sender.SendMessage(ctx, dlq.topic, original.Key, DeadLetter{
		OriginalTopic:  original.Topic,
		OriginalKey:    original.Key,
		OriginalValue:  string(original.Value),
		OriginalOffset: original.Offset,
		FailureReason:  reason,
		FailureError:   err.Error(),
		FailedAt:       time.Now(),
	})
}
