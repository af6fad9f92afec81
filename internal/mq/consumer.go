package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Dirigent/internal/events"
)

// TaskHandler — обработчик команды на выполнение task.
// Возвращает error, если выполнение нужно повторить (сообщение будет requeue).
type TaskHandler func(ctx context.Context, taskID uuid.UUID) error

// EventHandler — обработчик события системы из fanout-очереди подписчика.
type EventHandler func(ctx context.Context, e events.Event)

// Consumer потребляет сообщения из очереди RabbitMQ.
//
// Политика подтверждения зависит от очереди, поэтому Consumer создаётся
// через NewTaskConsumer или NewEventConsumer — каждый со своим dispatch.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	prefetch int
	dispatch func(ctx context.Context, raw amqp.Delivery)

	cancelFunc context.CancelFunc
}

// NewTaskConsumer создаёт consumer очереди tasks.pending.
//
// Политика доставки команд:
//   - нечитаемое тело, чужой тип сообщения или пустой task_id — nack без
//     requeue: повтор не поможет, сообщение уходит в dlq.tasks;
//   - ошибка handler — nack с requeue (при исчерпании повторов DLQ
//     настроен аргументами очереди);
//   - успех — ack.
func NewTaskConsumer(conn *Connection, logger *slog.Logger, handler TaskHandler, prefetch int) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}

	c := &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    string(QueueTasksPending),
		prefetch: prefetch,
	}
	c.dispatch = func(ctx context.Context, raw amqp.Delivery) {
		c.dispatchTask(ctx, raw, handler)
	}
	return c
}

// NewEventConsumer создаёт consumer очереди подписчика событий
// (см. DeclareEventQueue).
//
// События — best effort: битое сообщение логируется и подтверждается
// (fanout-очередь эксклюзивна, DLQ для неё нет), handler ошибок не
// возвращает. Prefetch фиксирован: события легковесны.
func NewEventConsumer(conn *Connection, logger *slog.Logger, queue string, handler EventHandler) *Consumer {
	c := &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    queue,
		prefetch: 32,
	}
	c.dispatch = func(ctx context.Context, raw amqp.Delivery) {
		c.dispatchEvent(ctx, raw, handler)
	}
	return c
}

// Start запускает потребление сообщений.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	// Запускаем основной цикл потребления
	return c.consume(ctx)
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Получаем канал доставки
		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			// Ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue)

		// Обрабатываем сообщения
		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			// Канал закрыт, ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	// Устанавливаем prefetch
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// Начинаем потребление
	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (мы ack вручную)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.dispatch(ctx, raw)
		}
	}
}

// dispatchTask обрабатывает одно сообщение очереди tasks.pending.
func (c *Consumer) dispatchTask(ctx context.Context, raw amqp.Delivery, handler TaskHandler) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		raw.Nack(false, false)
		return
	}

	if msg.Type != MessageTypeTaskPending {
		c.logger.Error("unexpected message type on task queue",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		raw.Nack(false, false)
		return
	}

	payload, err := decodePayload[TaskPendingPayload](&msg)
	if err != nil || payload.TaskID == uuid.Nil {
		c.logger.Error("invalid task.pending payload",
			"queue", c.queue,
			"message_id", msg.ID,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("received task.pending",
		"queue", c.queue,
		"message_id", msg.ID,
		"task_id", payload.TaskID,
	)

	if err := handler(ctx, payload.TaskID); err != nil {
		c.logger.Error("task handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"task_id", payload.TaskID,
			"error", err,
		)
		// Возвращаем в очередь для retry; исчерпание повторов — DLQ
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// dispatchEvent обрабатывает одно сообщение fanout-очереди событий.
func (c *Consumer) dispatchEvent(ctx context.Context, raw amqp.Delivery, handler EventHandler) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Warn("dropping unreadable event",
			"queue", c.queue,
			"error", err,
		)
		raw.Ack(false)
		return
	}

	e, err := decodePayload[events.Event](&msg)
	if err != nil || msg.Type != MessageTypeEvent {
		c.logger.Warn("dropping malformed event",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Ack(false)
		return
	}

	handler(ctx, e)
	raw.Ack(false)
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// decodePayload приводит payload сообщения к конкретному типу.
// После json.Unmarshal в Message payload лежит как map[string]any.
func decodePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
