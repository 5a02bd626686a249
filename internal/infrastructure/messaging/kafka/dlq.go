package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/pkg/errors"
)

// DLQWriter abstracts kafka.Writer for testing, mirroring ReaderInterface.
type DLQWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DLQProducer publishes messages a Consumer could not process to a
// per-subscription dead-letter topic. Counting the failure and committing
// the offset happen regardless; the DLQ topic is an operability aid on top
// of that, never a substitute for it.
type DLQProducer struct {
	writer DLQWriter
	logger logging.Logger
}

// NewDLQProducer constructs a DLQProducer writing to brokers. The target
// topic is chosen per-publish (one DLQ producer is shared process-wide; the
// topic is derived from the failing subscription's own topic).
func NewDLQProducer(brokers []string, logger logging.Logger) (*DLQProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "kafka: dlq producer requires brokers")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		// Dead-letter topics are created on first use rather than
		// provisioned ahead of every subscription's topic.
		AllowAutoTopicCreation: true,
	}
	return &DLQProducer{writer: writer, logger: logger}, nil
}

// dlqTopicFor derives the dead-letter topic name for an originating topic.
func dlqTopicFor(topic string) string {
	return topic + ".dlq"
}

// Publish writes one dead-lettered message. It is best-effort: a failure to
// publish is logged and swallowed — the message has already been counted as
// failed by the caller and the offset will be committed regardless.
func (p *DLQProducer) Publish(ctx context.Context, originTopic string, payload []byte, headers map[string]string, reason string) {
	kHeaders := make([]kafka.Header, 0, len(headers)+1)
	for k, v := range headers {
		kHeaders = append(kHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}
	kHeaders = append(kHeaders, kafka.Header{Key: "x-dlq-reason", Value: []byte(reason)})

	msg := kafka.Message{
		Topic:   dlqTopicFor(originTopic),
		Value:   payload,
		Headers: kHeaders,
		Time:    time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Error("kafka: dead-letter publish failed", logging.Err(err),
			logging.String("origin_topic", originTopic), logging.String("reason", reason))
	}
}

// Close releases the underlying writer.
func (p *DLQProducer) Close() error {
	return p.writer.Close()
}
