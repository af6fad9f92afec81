package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// Общие ошибки хранилищ.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
)

// TaskStore — хранилище tasks.
//
// Put выполняет атомарную замену записи целиком (upsert):
// никакой частичной записи наблюдать нельзя.
type TaskStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Put(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Task, error)
}

// TemplateStore — хранилище workflow templates.
type TemplateStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error)
	Put(ctx context.Context, tpl *domain.WorkflowTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.WorkflowTemplate, error)
}

// ResourceStore — хранилище resources и их архивных версий.
type ResourceStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	Put(ctx context.Context, res *domain.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Resource, error)

	// PutVersion сохраняет архивный снимок версии.
	PutVersion(ctx context.Context, v *domain.ResourceVersion) error

	// ListVersions возвращает снимки resource по возрастанию версии.
	ListVersions(ctx context.Context, resourceID uuid.UUID) ([]domain.ResourceVersion, error)

	// DeleteVersions удаляет все снимки resource (вместе с самим resource).
	DeleteVersions(ctx context.Context, resourceID uuid.UUID) error
}

// CapabilityStore — хранилище capability descriptors.
type CapabilityStore interface {
	Get(ctx context.Context, id string) (*domain.CapabilityDescriptor, error)
	Put(ctx context.Context, d *domain.CapabilityDescriptor) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.CapabilityDescriptor, error)
}

// ScheduleStore — хранилище schedules.
type ScheduleStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	Put(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Schedule, error)
}
