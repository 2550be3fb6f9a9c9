package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher пишет события сессий в топик для аналитики.
// Ключ сообщения - пара пользователей, события одной пары попадают в одну партицию.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event SessionEvent) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		sessionEventsTotal.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	sessionEventsTotal.WithLabelValues("kafka", "ok").Inc()
	p.log.Debug("session event written to kafka",
		zap.String("event", string(event.Type)),
		zap.String("session_id", event.SessionID))
	return nil
}

func kafkaMessage(event SessionEvent) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Pair().String()),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "session_id", Value: []byte(event.SessionID)},
		},
	}, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
