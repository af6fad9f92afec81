// Package events — явный канал уведомлений о событиях системы.
//
// Каждая мутация registries и каждый переход статуса task публикуется
// как типизированное событие. Подписка опциональна: компоненты
// получают Publisher через конфигурацию, по умолчанию — Nop.
package events

import (
	"context"
	"time"
)

// Виды событий.
const (
	KindTaskCreated   = "task.created"
	KindTaskStarted   = "task.started"
	KindTaskCompleted = "task.completed"
	KindTaskFailed    = "task.failed"
	KindTaskCancelled = "task.cancelled"
	KindStepRecorded  = "task.step_recorded"

	KindResourceRegistered = "resource.registered"
	KindResourceUpdated    = "resource.updated"
	KindResourceDeleted    = "resource.deleted"
	KindResourceShared     = "resource.shared"
	KindResourceLocked     = "resource.locked"
	KindResourceUnlocked   = "resource.unlocked"

	KindCapabilityRegistered = "capability.registered"
	KindCapabilityInvoked    = "capability.invoked"
	KindOutputSchemaViolated = "capability.output_schema_violated"
)

// Event — одно событие системы.
type Event struct {
	// Kind — вид события (константы Kind*).
	Kind string `json:"kind"`

	// At — время события.
	At time.Time `json:"at"`

	// Fields — полезная нагрузка события (идентификаторы, статусы).
	Fields map[string]any `json:"fields,omitempty"`
}

// Publisher — приёмник событий.
//
// Publish не должен блокировать вызывающую сторону надолго и не должен
// возвращать ошибку в бизнес-логику: доставка событий — best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop — Publisher, отбрасывающий события.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// New создаёт событие с текущим временем.
func New(kind string, fields map[string]any) Event {
	return Event{Kind: kind, At: time.Now(), Fields: fields}
}
