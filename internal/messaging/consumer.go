package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/velumlabs/fulfillment/internal/config"
	"github.com/velumlabs/fulfillment/internal/tenant"
)

var ErrMissingMessageID = errors.New("message has no message id")

const fetchBackoff = time.Second

type DedupStore interface {
	IsMessageProcessed(ctx context.Context, messageID string) (bool, error)
	MarkMessageProcessed(ctx context.Context, messageID, eventType, tenantID string) error
}

// Handler executes the side effect for one delivered message. The tenant id
// is already resolved into the context.
type Handler func(ctx context.Context, payload []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is one logical consumer for a single routing key, bound to its
// own group on the shared topic. Messages are drained serially, so ordering
// within this queue is preserved. Delivery is at-least-once; the dedup
// ledger makes consumption idempotent. Any failure dead-letters the message
// on the first attempt — there is no retry or backoff on the consume side.
type Consumer struct {
	logger     *slog.Logger
	reader     messageReader
	dlq        messageWriter
	routingKey string
	dedup      DedupStore
	handler    Handler
	backoff    time.Duration
}

func NewConsumer(logger *slog.Logger, cfg config.Kafka, routingKey string, dedup DedupStore, handler Handler) *Consumer {
	return &Consumer{
		logger: logger.With(slog.String("consumer", routingKey)),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupPrefix + "." + routingKey,
			Topic:   cfg.Topic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		dlq: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           cfg.BatchTimeout,
			AllowAutoTopicCreation: true,
		},
		routingKey: routingKey,
		dedup:      dedup,
		handler:    handler,
		backoff:    fetchBackoff,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			c.logger.Error("failed to fetch message", slog.Any("error", err))
			time.Sleep(c.backoff)
			continue
		}

		if err := c.process(ctx, m); err != nil {
			c.logger.Error("failed to process message", slog.Any("error", err))
			consumerFailed.WithLabelValues(c.routingKey).Inc()

			if err := c.writeToDLQ(ctx, m); err != nil {
				c.logger.Error("failed to write message to DLQ", slog.Any("error", err))
				// Leave the offset uncommitted; the message is redelivered.
				continue
			}
			consumerDeadLettered.WithLabelValues(c.routingKey).Inc()
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message", slog.Any("error", err))
			consumerCommitErrors.WithLabelValues(c.routingKey).Inc()
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) error {
	// All event types share the topic; each consumer only handles its own
	// routing key and acknowledges the rest untouched.
	if header(m, HeaderRoutingKey) != c.routingKey {
		return nil
	}

	messageID := header(m, HeaderMessageID)
	if messageID == "" {
		// The publisher always stamps an id; synthesizing one here would
		// break dedup on redelivery, so the message is rejected instead.
		return ErrMissingMessageID
	}
	ctx = tenant.WithContext(ctx, header(m, HeaderTenantID))

	processed, err := c.dedup.IsMessageProcessed(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to check dedup ledger: %w", err)
	}
	if processed {
		c.logger.Debug("duplicate message skipped", slog.String("message_id", messageID))
		consumerDuplicates.WithLabelValues(c.routingKey).Inc()
		return nil
	}

	if err := c.handler(ctx, m.Value); err != nil {
		return err
	}

	// Recorded before the broker ack. The two are not atomic: a crash in
	// between redelivers an already-recorded message, which the ledger
	// check above then discards.
	if err := c.dedup.MarkMessageProcessed(ctx, messageID, c.routingKey, header(m, HeaderTenantID)); err != nil {
		return err
	}

	consumerProcessed.WithLabelValues(c.routingKey).Inc()
	return nil
}

func (c *Consumer) writeToDLQ(ctx context.Context, m kafka.Message) error {
	m.Topic = DLQTopic(c.routingKey)
	return c.dlq.WriteMessages(ctx, m)
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return err
	}
	return c.dlq.Close()
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
