// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений и мост к events.Publisher
//   - consumer.go   — потребление сообщений из очередей
//
// Consumers типизированы по очереди, у каждого своя политика подтверждения:
//   - TaskConsumer (tasks.pending) — команды на выполнение; нечитаемое
//     сообщение уходит в DLQ, ошибка обработки — requeue
//   - EventConsumer (fanout-очередь подписчика) — события best effort;
//     битое сообщение логируется и отбрасывается
//
// Типы сообщений:
//   - task.pending — task ожидает выполнения engine'ом
//   - event        — уведомление о событии системы (fanout, подписка опциональна)
//
// Exchanges:
//   - dirigent.tasks  — команды на выполнение tasks
//   - dirigent.events — уведомления о событиях
//   - dirigent.dlq    — dead letter queue
package mq
