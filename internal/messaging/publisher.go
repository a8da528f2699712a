// Package messaging connects the service to the broker: an outbox relay
// that publishes committed domain events and idempotent per-event-type
// consumers with dead-letter topics.
package messaging

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/velumlabs/fulfillment/internal/config"
	"github.com/velumlabs/fulfillment/internal/repo"
)

// Message headers. The message id is stamped by the outbox at insert time,
// never by the consumer: a consumer-synthesized id would defeat
// deduplication on redelivery.
const (
	HeaderMessageID  = "message-id"
	HeaderRoutingKey = "routing-key"
	HeaderTenantID   = "tenant-id"
)

// DLQTopic names the dead-letter topic paired with a routing key.
func DLQTopic(routingKey string) string {
	return routingKey + ".failed"
}

type Publisher struct {
	writer *kafka.Writer
	topic  string
}

func NewPublisher(cfg config.Kafka) *Publisher {
	return &Publisher{
		topic: cfg.Topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes one outbox row to the shared order-events topic. The order
// id keys the message so all events of one order land on one partition.
func (p *Publisher) Publish(ctx context.Context, m repo.OutboxMessage) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(m.OrderID),
		Value: m.Payload,
		Headers: []kafka.Header{
			{Key: HeaderRoutingKey, Value: []byte(m.EventType)},
			{Key: HeaderMessageID, Value: []byte(m.MessageID)},
			{Key: HeaderTenantID, Value: []byte(m.TenantID)},
		},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
