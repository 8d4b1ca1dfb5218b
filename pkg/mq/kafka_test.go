package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	configpkg "github.com/wyfcoding/pkg/config"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func TestSendMessageEncodesJSON(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaProducer{writer: w}

	require.NoError(t, p.SendMessage(context.Background(), "events", "OPT-1", map[string]string{"delta": "0.5"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "events", w.msgs[0].Topic)
	assert.Equal(t, "OPT-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"delta":"0.5"}`, string(w.msgs[0].Value))
}

func TestSendMessagePropagatesWriterError(t *testing.T) {
	p := &KafkaProducer{writer: &recordingWriter{err: errors.New("no brokers")}}
	assert.Error(t, p.SendMessage(context.Background(), "events", "k", 1))
}

func TestRunCommitsAndDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Topic: "quotes", Key: []byte("A"), Value: []byte(`{"ok":true}`), Offset: 1},
			{Topic: "quotes", Key: []byte("B"), Value: []byte(`not json`), Offset: 2},
		},
	}
	dlqWriter := &recordingWriter{}
	consumer := &KafkaConsumer{reader: reader, topic: "quotes"}
	consumer.WithDeadLetterQueue(NewDeadLetterQueue(&KafkaProducer{writer: dlqWriter}, "quotes.dlq"))

	var handled []string
	err := consumer.Run(ctx, func(_ context.Context, msg *Message) error {
		var body map[string]any
		if err := msg.UnmarshalPayload(&body); err != nil {
			return err
		}
		handled = append(handled, msg.Key)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, handled)
	assert.Equal(t, []int64{1, 2}, reader.committed)
	require.Len(t, dlqWriter.msgs, 1)

	var dl DeadLetter
	require.NoError(t, json.Unmarshal(dlqWriter.msgs[0].Value, &dl))
	assert.Equal(t, "quotes", dl.OriginalTopic)
	assert.Equal(t, "not json", dl.OriginalValue)
	assert.Equal(t, int64(2), dl.OriginalOffset)
}

func TestNewProducerRequiredAcks(t *testing.T) {
	p := NewProducer(configpkg.KafkaConfig{Brokers: []string{"kafka:9092"}, MaxAttempts: 5})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, 5, w.MaxAttempts)

	p = NewProducer(configpkg.KafkaConfig{Brokers: []string{"kafka:9092"}, RequiredAcks: 1})
	w = p.writer.(*kafka.Writer)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}
