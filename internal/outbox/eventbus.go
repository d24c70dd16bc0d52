package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventBusPublisher is the narrow interface the Outbox Publisher needs
// from the event bus, so tests can substitute a fake without a live
// Kafka broker.
type EventBusPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// KafkaEventBus adapts github.com/segmentio/kafka-go to EventBusPublisher.
// Configured for durable delivery: acks from all in-sync replicas, one
// synchronous write per Publish call so records for a key are not
// reordered, each write bounded by the delivery timeout, and a failed
// write retried up to kafka-go's default attempt limit of 10.
type KafkaEventBus struct {
	writer *kafka.Writer
}

// NewKafkaEventBus builds a writer against the given bootstrap servers
// and topic.
func NewKafkaEventBus(brokers []string, topic string, deliveryTimeout time.Duration) *KafkaEventBus {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // partition by key so per-transaction_id order is preserved
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  0, // 0 selects kafka-go's default limit of 10 attempts
		WriteTimeout: deliveryTimeout,
		Async:        false,
	}
	return &KafkaEventBus{writer: w}
}

// Publish sends one record keyed by transaction_id, blocking until the
// broker has acknowledged it or the context/delivery timeout elapses.
func (k *KafkaEventBus) Publish(ctx context.Context, key string, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (k *KafkaEventBus) Close() error {
	return k.writer.Close()
}
