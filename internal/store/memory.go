package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// In-memory реализации хранилищ.
//
// Используются в тестах и в single-node режиме без Postgres.
// Каждый Get/List возвращает копию записи: мутации вызывающей стороны
// не видны хранилищу до явного Put.

// MemoryTaskStore — in-memory TaskStore.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task
}

// NewMemoryTaskStore создаёт пустой MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[uuid.UUID]domain.Task)}
}

func (s *MemoryTaskStore) Get(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (s *MemoryTaskStore) Put(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryTaskStore) List(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

// MemoryTemplateStore — in-memory TemplateStore.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]domain.WorkflowTemplate
}

// NewMemoryTemplateStore создаёт пустой MemoryTemplateStore.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[uuid.UUID]domain.WorkflowTemplate)}
}

func (s *MemoryTemplateStore) Get(_ context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tpl, nil
}

func (s *MemoryTemplateStore) Put(_ context.Context, tpl *domain.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = *tpl
	return nil
}

func (s *MemoryTemplateStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryTemplateStore) List(_ context.Context) ([]domain.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkflowTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out, nil
}

// MemoryResourceStore — in-memory ResourceStore.
type MemoryResourceStore struct {
	mu        sync.RWMutex
	resources map[uuid.UUID]domain.Resource
	versions  map[uuid.UUID][]domain.ResourceVersion
}

// NewMemoryResourceStore создаёт пустой MemoryResourceStore.
func NewMemoryResourceStore() *MemoryResourceStore {
	return &MemoryResourceStore{
		resources: make(map[uuid.UUID]domain.Resource),
		versions:  make(map[uuid.UUID][]domain.ResourceVersion),
	}
}

func (s *MemoryResourceStore) Get(_ context.Context, id uuid.UUID) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &res, nil
}

func (s *MemoryResourceStore) Put(_ context.Context, res *domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[res.ID] = *res
	return nil
}

func (s *MemoryResourceStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[id]; !ok {
		return ErrNotFound
	}
	delete(s.resources, id)
	return nil
}

func (s *MemoryResourceStore) List(_ context.Context) ([]domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryResourceStore) PutVersion(_ context.Context, v *domain.ResourceVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ResourceID] = append(s.versions[v.ResourceID], *v)
	return nil
}

func (s *MemoryResourceStore) ListVersions(_ context.Context, resourceID uuid.UUID) ([]domain.ResourceVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.versions[resourceID]
	out := make([]domain.ResourceVersion, len(versions))
	copy(out, versions)
	return out, nil
}

func (s *MemoryResourceStore) DeleteVersions(_ context.Context, resourceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, resourceID)
	return nil
}

// MemoryCapabilityStore — in-memory CapabilityStore.
type MemoryCapabilityStore struct {
	mu           sync.RWMutex
	capabilities map[string]domain.CapabilityDescriptor
}

// NewMemoryCapabilityStore создаёт пустой MemoryCapabilityStore.
func NewMemoryCapabilityStore() *MemoryCapabilityStore {
	return &MemoryCapabilityStore{capabilities: make(map[string]domain.CapabilityDescriptor)}
}

func (s *MemoryCapabilityStore) Get(_ context.Context, id string) (*domain.CapabilityDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.capabilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryCapabilityStore) Put(_ context.Context, d *domain.CapabilityDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities[d.ID] = *d
	return nil
}

func (s *MemoryCapabilityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.capabilities[id]; !ok {
		return ErrNotFound
	}
	delete(s.capabilities, id)
	return nil
}

func (s *MemoryCapabilityStore) List(_ context.Context) ([]domain.CapabilityDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CapabilityDescriptor, 0, len(s.capabilities))
	for _, d := range s.capabilities {
		out = append(out, d)
	}
	return out, nil
}

// MemoryScheduleStore — in-memory ScheduleStore.
type MemoryScheduleStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]domain.Schedule
}

// NewMemoryScheduleStore создаёт пустой MemoryScheduleStore.
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{schedules: make(map[uuid.UUID]domain.Schedule)}
}

func (s *MemoryScheduleStore) Get(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sch, nil
}

func (s *MemoryScheduleStore) Put(_ context.Context, sch *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sch.ID] = *sch
	return nil
}

func (s *MemoryScheduleStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

func (s *MemoryScheduleStore) List(_ context.Context) ([]domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, sch)
	}
	return out, nil
}
