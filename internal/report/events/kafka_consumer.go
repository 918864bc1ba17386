// Package events moves snapshot envelopes over Kafka: the producer captures
// {previous, current} pairs at commit time, the consumer feeds them to the
// aggregation router. Delivery is at-least-once; downstream handlers are
// idempotent, so duplicates are safe.
package events

import (
	"context"
	"encoding/json"
	"errors"

	e "github.com/hrplane/reporting/internal/report/errors"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer reads snapshot envelopes from a Kafka topic and hands them to the
// registered handler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *zap.Logger
	handler func(context.Context, models.Message) error
}

// NewConsumer builds a consumer joined to a consumer group.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger: logger.Named("kafka_consumer"),
	}
}

// RegisterHandler sets the function invoked for each decoded envelope.
func (c *Consumer) RegisterHandler(fn func(context.Context, models.Message) error) {
	c.handler = fn
}

// Start consumes messages until ctx is cancelled. Invalid envelopes are
// committed and dropped with an error log: retrying a structurally broken
// message cannot succeed and would wedge the partition. Other handler
// errors leave the message uncommitted so the group redelivers it.
func (c *Consumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Failed to fetch message", zap.Error(err))
				continue
			}

			var envelope models.Message
			if err := json.Unmarshal(msg.Value, &envelope); err != nil {
				c.logger.Error("Failed to parse snapshot envelope",
					zap.Error(err),
					zap.ByteString("value", msg.Value),
				)
				c.commit(ctx, msg, envelope)
				continue
			}

			if err := c.handler(ctx, envelope); err != nil {
				c.logger.Error("Failed to handle snapshot envelope",
					zap.Error(err),
					zap.String("entity", string(envelope.Entity)),
					zap.String("action", string(envelope.Action)),
				)
				if errors.Is(err, e.ErrInvalidSnapshot) {
					c.commit(ctx, msg, envelope)
				}
				continue
			}

			c.commit(ctx, msg, envelope)
		}
	}()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, envelope models.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("entity", string(envelope.Entity)),
		)
	}
}

// Close shuts the reader down.
func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
