package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Dirigent/internal/events"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskPending MessageType = "task.pending"
	MessageTypeEvent       MessageType = "event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskPendingPayload — payload сообщения о task, ожидающем выполнения.
type TaskPendingPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishTaskPending публикует команду на выполнение task.
// Потребитель: engine.
func (p *Publisher) PublishTaskPending(ctx context.Context, taskID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskPending,
		Payload:   TaskPendingPayload{TaskID: taskID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyPending, msg)
}

// PublishEvent публикует событие в fanout-обменник событий.
func (p *Publisher) PublishEvent(ctx context.Context, e events.Event) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEvent,
		Payload:   e,
		Timestamp: e.At,
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyEvent, msg)
}

// EventBridge адаптирует Publisher к контракту events.Publisher.
//
// Доставка best effort: ошибка публикации логируется, но не доходит
// до бизнес-логики.
type EventBridge struct {
	pub    *Publisher
	logger *slog.Logger
}

// NewEventBridge создаёт EventBridge.
func NewEventBridge(pub *Publisher, logger *slog.Logger) *EventBridge {
	return &EventBridge{pub: pub, logger: logger}
}

// Publish публикует событие, глотая ошибку доставки.
func (b *EventBridge) Publish(ctx context.Context, e events.Event) {
	if err := b.pub.PublishEvent(ctx, e); err != nil {
		b.logger.Warn("failed to publish event",
			"kind", e.Kind,
			"error", err,
		)
	}
}
