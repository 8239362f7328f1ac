// Package events publishes payment session transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"cardpresent/services/payments"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransitionPublisher writes every session transition to a topic, keyed by
// attempt id so one attempt's events stay ordered within a partition.
type TransitionPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher returns a publisher writing asynchronously to topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *TransitionPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to publish transition events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *zap.Logger) *TransitionPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionPublisher{writer: w, logger: logger}
}

func (p *TransitionPublisher) OnTransition(ctx context.Context, ev payments.TransitionEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to encode transition event", zap.String("attempt_id", ev.AttemptID), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.AttemptID),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(ev.To)},
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("Failed to publish transition event",
			zap.String("attempt_id", ev.AttemptID),
			zap.String("to", string(ev.To)),
			zap.Error(err))
	}
}

func (p *TransitionPublisher) Close() error {
	return p.writer.Close()
}
