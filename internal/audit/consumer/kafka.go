// Package consumer reads audit events from Kafka and stores them.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"core-auth/internal/audit/domain"
	"core-auth/internal/audit/repository"
)

// storeTimeout bounds a single repository write.
const storeTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer moves audit events from a Kafka topic into the audit repository.
type Consumer struct {
	reader messageReader
	repo   repository.Repository
	logger *zap.Logger
}

// NewConsumer returns a consumer for topic in consumer group groupID.
func NewConsumer(brokers []string, topic, groupID string, repo repository.Repository, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newConsumer(reader, repo, logger)
}

func newConsumer(reader messageReader, repo repository.Repository, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, repo: repo, logger: logger}
}

// Run consumes until ctx is cancelled. A message is committed once it is stored or found
// to be undecodable; a store failure leaves it uncommitted and stops the loop so the
// group rebalances and redelivers it.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.ID == "" || event.Action == "" {
		c.logger.Warn("audit consumer: dropping malformed message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.repo.Create(storeCtx, &event); err != nil {
		c.logger.Error("audit consumer: store failed",
			zap.String("event_id", event.ID),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return err
	}
	c.logger.Debug("audit consumer: stored event",
		zap.String("event_id", event.ID),
		zap.String("action", string(event.Action)))
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
