package events

import (
	"context"
	"encoding/json"

	"github.com/hrplane/reporting/internal/report/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

// KafkaWriter is the slice of kafka.Writer the producer needs, kept as an
// interface so tests can swap in a recorder.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes snapshot envelopes keyed by entity id so all mutations
// of one entity land on the same partition.
type Producer struct {
	writer    KafkaWriter
	messages  chan keyedMessage
	logger    *zap.Logger
	closeChan chan struct{}
}

type keyedMessage struct {
	key      string
	envelope models.Message
}

// NewProducer creates the topic when missing and starts the publish loop.
func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
			Topic:    topic,
		},
		messages:  make(chan keyedMessage, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.publishLoop()
	return p, nil
}

// Produce enqueues an envelope for asynchronous publishing. A full queue
// drops the envelope with a warning; the batch reconciler repairs whatever
// the incremental path misses.
func (p *Producer) Produce(entityID string, envelope models.Message) {
	select {
	case p.messages <- keyedMessage{key: entityID, envelope: envelope}:
	default:
		p.logger.Warn("snapshot producer queue full, dropping envelope",
			zap.String("entity", string(envelope.Entity)),
			zap.String("action", string(envelope.Action)),
			zap.String("entity_id", entityID),
		)
	}
}

func (p *Producer) publishLoop() {
	for {
		select {
		case msg := <-p.messages:
			p.send(context.Background(), msg)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) send(ctx context.Context, msg keyedMessage) {
	value, err := jsonMarshal(msg.envelope)
	if err != nil {
		p.logger.Error("Failed to serialize snapshot envelope",
			zap.Error(err),
			zap.String("entity_id", msg.key),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.key),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce snapshot envelope",
			zap.Error(err),
			zap.String("entity", string(msg.envelope.Entity)),
			zap.String("entity_id", msg.key),
		)
		return
	}
}

// Close stops the publish loop and closes the writer.
func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
