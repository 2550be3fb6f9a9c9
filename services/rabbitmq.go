package services

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitPublisher публикует события сессий в topic exchange,
// по одному сообщению на участника с ключом user.<id>
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger
}

// NewRabbitPublisher открывает соединение, канал и объявляет exchange
func NewRabbitPublisher(url, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Создаем exchange типа topic
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	log.Info("RabbitMQ initialized", zap.String("exchange", exchange))
	return &RabbitPublisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

func routingKey(userID string) string {
	return "user." + userID
}

func (p *RabbitPublisher) Publish(ctx context.Context, event SessionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	pair := event.Pair()
	for _, userID := range []string{pair.Low, pair.High} {
		err := p.channel.PublishWithContext(ctx,
			p.exchange,
			routingKey(userID),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType: "application/json",
				MessageId:   event.SessionID,
				Body:        body,
			},
		)
		if err != nil {
			sessionEventsTotal.WithLabelValues("rabbitmq", "error").Inc()
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}
	sessionEventsTotal.WithLabelValues("rabbitmq", "ok").Inc()
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// StartConsumer слушает события сессий и пушит их получателю через WebSocket.
// Ключ маршрутизации определяет получателя.
func (p *RabbitPublisher) StartConsumer(ctx context.Context, queueName string, conns *WSConnManager) error {
	q, err := p.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	// Биндим очередь к exchange по routing key user.*
	if err := p.channel.QueueBind(q.Name, "user.*", p.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := p.channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					p.log.Warn("RabbitMQ delivery channel closed")
					return
				}
				p.deliver(conns, msg)
			}
		}
	}()
	return nil
}

func (p *RabbitPublisher) deliver(conns *WSConnManager, msg amqp.Delivery) {
	var event SessionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		p.log.Warn("failed to unmarshal session event", zap.Error(err))
		return
	}
	userID := recipientFromKey(msg.RoutingKey)
	if userID == "" || !event.Pair().Contains(userID) {
		return
	}
	data, err := json.Marshal(sessionPushFor(userID, event))
	if err != nil {
		return
	}
	conns.Send(userID, data)
}

func recipientFromKey(key string) string {
	const prefix = "user."
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return ""
	}
	return key[len(prefix):]
}
