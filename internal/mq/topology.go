package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeTasks — команды на выполнение tasks (direct).
	ExchangeTasks Exchange = "dirigent.tasks"

	// ExchangeEvents — уведомления о событиях системы (fanout).
	// Подписка опциональна: каждый потребитель объявляет свою очередь.
	ExchangeEvents Exchange = "dirigent.events"

	// ExchangeDLQ — dead letter queue.
	ExchangeDLQ Exchange = "dirigent.dlq"
)

// Queues — имена очередей.
const (
	// QueueTasksPending — tasks, ожидающие выполнения engine'ом.
	QueueTasksPending Queue = "tasks.pending"

	// QueueDLQTasks — необработанные сообщения tasks.
	QueueDLQTasks Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyPending  RoutingKey = "pending"
	RoutingKeyEvent    RoutingKey = ""
	RoutingKeyDLQTasks RoutingKey = "tasks"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна: повторное объявление с теми же параметрами — no-op.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "direct"},
		{ExchangeEvents, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.pending — с DLQ (сообщения о невыполнимых tasks не теряются)
		{QueueTasksPending, dlqArgs},

		// dlq.tasks — конечная точка мёртвых сообщений
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // auto-delete
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue    Queue
		key      RoutingKey
		exchange Exchange
	}{
		{QueueTasksPending, RoutingKeyPending, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),
			string(b.key),
			string(b.exchange),
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// DeclareEventQueue объявляет очередь подписчика событий и привязывает
// её к fanout-обменнику. Возвращает имя очереди (сгенерированное
// сервером при пустом name). Очередь эксклюзивна: живёт, пока живо
// соединение подписчика.
func DeclareEventQueue(ctx context.Context, conn *Connection, name string) (string, error) {
	var queueName string
	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			name,  // name
			false, // durable
			true,  // auto-delete
			true,  // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare event queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, "", string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind event queue: %w", err)
		}
		queueName = q.Name
		return nil
	})
	return queueName, err
}
