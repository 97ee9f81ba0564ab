// Package producer publishes audit events to Kafka.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"core-auth/internal/audit/domain"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements audit.Emitter using segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer creates a producer that writes audit events to topic.
// It returns nil when brokers or topic is empty; a nil producer is a valid no-op emitter.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the event as JSON and writes it keyed by account id, so one account's
// events stay on one partition in order.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return oops.Code("AUDIT_ENCODE_FAILED").With("event_id", event.ID).Wrap(err)
	}
	msg := kafka.Message{
		Key:     []byte(event.AccountID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "action", Value: []byte(event.Action)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return oops.Code("AUDIT_PUBLISH_FAILED").With("topic", p.topic).With("event_id", event.ID).Wrap(err)
	}
	return nil
}

// Close closes the Kafka writer. Safe on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
