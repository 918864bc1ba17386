package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testEnvelope(t *testing.T) (string, models.Message) {
	t.Helper()
	snap := models.WorkHistorySnapshot{
		EventID:    uuid.New(),
		EmployeeID: uuid.New(),
		Date:       models.NewDate(2026, time.January, 5),
		Name:       models.EventTransfer,
	}
	data, err := json.Marshal(snap)
	assert.NoError(t, err)
	return snap.EventID.String(), models.Message{
		Entity:  models.EntityWorkHistory,
		Action:  models.ActionCreate,
		Current: data,
	}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("successful produce", func(t *testing.T) {
		producer := &Producer{
			messages:  make(chan keyedMessage, 10),
			logger:    zaptest.NewLogger(t),
			closeChan: make(chan struct{}),
		}
		key, envelope := testEnvelope(t)

		producer.Produce(key, envelope)

		assert.Equal(t, 1, len(producer.messages))
	})

	t.Run("dropped envelope when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := &Producer{
			messages:  make(chan keyedMessage, 1),
			logger:    zap.New(core),
			closeChan: make(chan struct{}),
		}
		key, envelope := testEnvelope(t)

		// Fill the channel
		producer.Produce(key, envelope)
		producer.Produce(key, envelope) // This should be dropped

		// Check logs
		assert.Equal(t, 1, recorded.FilterMessage("snapshot producer queue full, dropping envelope").Len())
	})
}

func TestProducer_Send(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	key, envelope := testEnvelope(t)

	producer := &Producer{
		writer: mockWriter,
		logger: zaptest.NewLogger(t),
	}

	t.Run("successful send", func(t *testing.T) {
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)

		producer.send(context.Background(), keyedMessage{key: key, envelope: envelope})

		value, err := json.Marshal(envelope)
		assert.NoError(t, err)
		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{
				Key:   []byte(key),
				Value: value,
			},
		})
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)

		// Mock JSON marshaling to force error
		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.send(context.Background(), keyedMessage{key: key, envelope: envelope})

		// Verify error logging
		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize snapshot envelope").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("entity_id", key)).Len())
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		producer.logger = zap.New(core)
		mockWriter.ExpectedCalls = nil
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))

		producer.send(context.Background(), keyedMessage{key: key, envelope: envelope})

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce snapshot envelope").Len())
	})
}

func TestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(nil)

	producer := &Producer{
		writer:    mockWriter,
		closeChan: make(chan struct{}),
		logger:    zaptest.NewLogger(t),
	}

	producer.Close()

	// Verify close channel is closed
	select {
	case <-producer.closeChan:
	default:
		t.Error("closeChan not closed")
	}

	mockWriter.AssertCalled(t, "Close")
}

func TestProducer_PublishLoop(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)

	producer := &Producer{
		writer:    mockWriter,
		messages:  make(chan keyedMessage, 1),
		logger:    zaptest.NewLogger(t),
		closeChan: make(chan struct{}),
	}

	key, envelope := testEnvelope(t)

	// Start publish loop
	go producer.publishLoop()

	// Send envelope
	producer.messages <- keyedMessage{key: key, envelope: envelope}

	// Give time for processing
	time.Sleep(100 * time.Millisecond)

	close(producer.closeChan)
	mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}
