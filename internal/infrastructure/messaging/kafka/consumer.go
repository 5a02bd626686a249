// Package kafka is the only broker driver shipped with the engine.
// Consumer adapts one Subscription's binding into a consumer the Dynamic
// Consumer Manager can run and tear down.
package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.CodeConflict, "consumer already running")

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded broker message. It is called with the raw
// payload bytes and broker headers; the caller (the Event Router, via the
// Consumer Manager) is solely responsible for deriving envelope fields and
// routing. The offset is committed unconditionally after Handler returns —
// Handler itself never signals a retry. A non-nil return means the message
// itself could not be
// processed at all (e.g. deserialization failure); it is not a channel for
// the endpoint's own delivery outcome, which never propagates this far.
// When non-nil, and a dead-letter producer is configured, the original
// message is published to the subscription's DLQ topic before the offset
// is committed.
type Handler func(ctx context.Context, payload []byte, headers map[string]string) error

// Consumer polls a single topic/group binding and hands every message to a
// Handler, committing only after the handler returns — the broker consumer
// must not auto-commit.
type Consumer struct {
	reader  ReaderInterface
	logger  logging.Logger
	running atomic.Bool

	topic string
	dlq   *DLQProducer
}

// SetDeadLetter attaches a dead-letter producer. Optional; a Consumer with
// none configured simply drops unprocessable messages after counting them.
func (c *Consumer) SetDeadLetter(dlq *DLQProducer) {
	c.dlq = dlq
}

// Config is built directly from a Subscription's binding fields
// (TopicOrQueue, ConsumerGroupID, ConnectionConfig) by the Consumer Manager,
// plus the process-wide KafkaConfig defaults merged in by the caller for
// any field the subscription's connection_config leaves unset.
type Config struct {
	Brokers           []string
	GroupID           string
	Topic             string
	SASLEnabled       bool
	SASLMechanism     string
	SASLUsername      string
	SASLPassword      string
	TLSEnabled        bool
	TLSCertPath       string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// ConnectionConfigToKafkaConfig parses a Subscription's generic
// connection_config string map into a Kafka-specific Config. Recognized
// keys: "brokers" (comma-separated), "sasl_enabled", "sasl_mechanism",
// "sasl_username", "sasl_password", "tls_enabled", "tls_cert_path".
func ConnectionConfigToKafkaConfig(topic, groupID string, connectionConfig map[string]string) Config {
	cfg := Config{Topic: topic, GroupID: groupID}
	if v := connectionConfig["brokers"]; v != "" {
		cfg.Brokers = splitCSV(v)
	}
	cfg.SASLEnabled, _ = strconv.ParseBool(connectionConfig["sasl_enabled"])
	cfg.SASLMechanism = connectionConfig["sasl_mechanism"]
	cfg.SASLUsername = connectionConfig["sasl_username"]
	cfg.SASLPassword = connectionConfig["sasl_password"]
	cfg.TLSEnabled, _ = strconv.ParseBool(connectionConfig["tls_enabled"])
	cfg.TLSCertPath = connectionConfig["tls_cert_path"]
	return cfg
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// NewConsumer constructs a Consumer for one subscription binding.
func NewConsumer(cfg Config, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "kafka: brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.CodeInvalidParam, "kafka: topic required")
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if cfg.TLSEnabled {
		tlsConfig := &tls.Config{InsecureSkipVerify: true}
		if cfg.TLSCertPath != "" {
			if caCert, err := os.ReadFile(cfg.TLSCertPath); err == nil {
				pool := x509.NewCertPool()
				pool.AppendCertsFromPEM(caCert)
				tlsConfig.RootCAs = pool
				tlsConfig.InsecureSkipVerify = false
			}
		}
		dialer.TLS = tlsConfig
	}
	if cfg.SASLEnabled {
		mech, err := saslMechanism(cfg)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "kafka: failed to create SASL mechanism")
		}
		dialer.SASLMechanism = mech
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		Dialer:      dialer,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    50 * 1024 * 1024,
	}
	if cfg.SessionTimeout > 0 {
		readerCfg.SessionTimeout = cfg.SessionTimeout
	}
	if cfg.HeartbeatInterval > 0 {
		readerCfg.HeartbeatInterval = cfg.HeartbeatInterval
	}

	reader := kafka.NewReader(readerCfg)

	return &Consumer{reader: reader, logger: logger, topic: cfg.Topic}, nil
}

func saslMechanism(cfg Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.SASLUsername, cfg.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
	default:
		return plain.Mechanism{Username: cfg.SASLUsername, Password: cfg.SASLPassword}, nil
	}
}

// Run polls until ctx is cancelled, invoking handle for every message and
// committing its offset unconditionally afterward. Run returns nil on
// clean cancellation.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka: fetch message failed", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		headers := make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			headers[h.Key] = string(h.Value)
		}

		if handleErr := handle(ctx, m.Value, headers); handleErr != nil && c.dlq != nil {
			c.dlq.Publish(ctx, c.topic, m.Value, headers, handleErr.Error())
		}

		// Commit happens only after the handler returns, regardless of
		// outcome: the router never propagates the endpoint's error, and
		// deserialization/unexpected failures are still followed by a
		// commit so the consumer never stalls.
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("kafka: commit messages failed", logging.Err(err))
		}
	}
}

// Close stops polling and releases the underlying reader. It does not wait
// for an in-flight Run call to return; the caller is expected to have
// already cancelled Run's context and be waiting on it separately.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
