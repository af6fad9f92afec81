package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/schema"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/telemetry"
	"golang.org/x/sync/semaphore"
)

// Default configuration values.
const (
	defaultMaxConcurrent = 16
	defaultStepTimeout   = 30 * time.Second
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 100
	defaultHolderID      = "engine"
)

// FallbackPolicy — политика резолюции capability для шага, когда
// объявленная capability не авторизует исполнителя engine'а.
type FallbackPolicy string

const (
	// FallbackNone — отсутствие авторизованной capability проваливает шаг.
	FallbackNone FallbackPolicy = "none"

	// FallbackCategory — подменить на зарегистрированную capability
	// той же категории с наименьшим ID, авторизующую исполнителя.
	// Сохраняет возможность деградированного выполнения.
	FallbackCategory FallbackPolicy = "category"
)

// Engine — state machine выполнения tasks.
type Engine struct {
	tasks        store.TaskStore
	catalog      *catalog.Catalog
	capabilities *capability.Registry
	events       events.Publisher
	logger       *slog.Logger

	// holderID — идентификатор, под которым engine вызывает capabilities.
	holderID string

	fallback    FallbackPolicy
	stepTimeout time.Duration

	// sem ограничивает число конкурентно выполняемых tasks.
	sem *semaphore.Weighted

	// active — tasks в процессе выполнения (taskID → состояние отмены).
	active map[uuid.UUID]*activeTask
	mu     sync.Mutex

	// Lifecycle (для сервисного режима, см. service.go)
	pollInterval time.Duration
	batchSize    int
	consumer     *mq.Consumer
	cancelFunc   context.CancelFunc
	wg           sync.WaitGroup
	stopped      bool
	stoppedMu    sync.RWMutex
}

// activeTask — in-memory состояние выполняемого task.
//
// cancel и tryFinish взаимно исключают друг друга: кто первым взял
// mutex, тот и определил терминальный статус. Это закрывает гонку,
// когда Cancel приходит между последней проверкой отмены и записью
// терминального статуса в хранилище.
type activeTask struct {
	mu          sync.Mutex
	cancelled   bool
	cancelledAt time.Time
	finished    bool
}

// cancel помечает task отменённым. Возвращает false, если терминальный
// статус уже зафиксирован и отмена опоздала.
func (a *activeTask) cancel(at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return false
	}
	if !a.cancelled {
		a.cancelled = true
		a.cancelledAt = at
	}
	return true
}

func (a *activeTask) isCancelled() (bool, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled, a.cancelledAt
}

// tryFinish фиксирует право записать терминальный статус (COMPLETED
// или FAILED). Возвращает (false, cancelledAt), если отмена успела
// раньше — тогда task завершается как CANCELLED.
func (a *activeTask) tryFinish() (bool, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return false, a.cancelledAt
	}
	a.finished = true
	return true, time.Time{}
}

// Config — конфигурация Engine.
type Config struct {
	// Tasks — хранилище tasks.
	Tasks store.TaskStore

	// Catalog — каталог templates.
	Catalog *catalog.Catalog

	// Capabilities — реестр capabilities.
	Capabilities *capability.Registry

	// Events — канал уведомлений (опционально).
	Events events.Publisher

	// HolderID — идентификатор исполнителя (default: "engine").
	HolderID string

	// Fallback — политика fallback-резолюции (default: category).
	Fallback FallbackPolicy

	// StepTimeout — жёсткая верхняя граница вызова шага (default: 30s).
	StepTimeout time.Duration

	// MaxConcurrent — максимум конкурентных tasks (default: 16).
	MaxConcurrent int

	// PollInterval — интервал polling в сервисном режиме (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество tasks за один poll (default: 100).
	BatchSize int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := cfg.Events
	if pub == nil {
		pub = events.Nop{}
	}
	holderID := cfg.HolderID
	if holderID == "" {
		holderID = defaultHolderID
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = FallbackCategory
	}
	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Engine{
		tasks:        cfg.Tasks,
		catalog:      cfg.Catalog,
		capabilities: cfg.Capabilities,
		events:       pub,
		logger:       logger,
		holderID:     holderID,
		fallback:     fallback,
		stepTimeout:  stepTimeout,
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
		active:       make(map[uuid.UUID]*activeTask),
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// CreateTask создаёт task из template.
//
// Вход валидируется против InputSchema template; при нарушениях
// возвращается *ValidationError и task не создаётся.
func (e *Engine) CreateTask(ctx context.Context, templateID uuid.UUID, input map[string]any, priority domain.Priority) (*domain.Task, error) {
	tpl, err := e.catalog.Get(ctx, templateID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, fmt.Errorf("%w: %s", ErrTemplateInactive, templateID)
	}

	if res := schema.Validate(input, tpl.InputSchema); !res.Valid {
		return nil, &ValidationError{Violations: res.Errors}
	}

	if priority == "" {
		priority = domain.PriorityNormal
	}

	task := &domain.Task{
		ID:          uuid.New(),
		TemplateID:  tpl.ID,
		Input:       input,
		Priority:    priority,
		Status:      domain.TaskStatusPending,
		CurrentStep: 0,
		CreatedAt:   time.Now(),
	}

	if err := e.tasks.Put(ctx, task); err != nil {
		return nil, fmt.Errorf("put task: %w", err)
	}

	telemetry.TaskTransitions.WithLabelValues(string(domain.TaskStatusPending)).Inc()
	e.events.Publish(ctx, events.New(events.KindTaskCreated, map[string]any{
		"task_id":     task.ID.String(),
		"template_id": tpl.ID.String(),
		"priority":    string(priority),
	}))

	e.logger.Info("task created",
		"task_id", task.ID,
		"template_id", tpl.ID,
		"template", tpl.Name,
	)
	return task, nil
}

// Cancel отменяет task.
//
// Допустим только из PENDING или RUNNING. Уже применённые шаги
// не откатываются; in-flight вызов не прерывается — его результат
// будет записан для аудита, но дальнейшие шаги не выполняются.
func (e *Engine) Cancel(ctx context.Context, taskID uuid.UUID) error {
	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case domain.TaskStatusPending, domain.TaskStatusRunning:
	default:
		return fmt.Errorf("%w: cannot cancel task in status %s", ErrInvalidState, task.Status)
	}

	now := time.Now()

	e.mu.Lock()
	state, running := e.active[taskID]
	e.mu.Unlock()

	if running && !state.cancel(now) {
		// Терминальный статус уже записан — отменять нечего
		return fmt.Errorf("%w: task already finished", ErrInvalidState)
	}

	task.MarkCancelled()
	if err := e.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("put task: %w", err)
	}

	telemetry.TaskTransitions.WithLabelValues(string(domain.TaskStatusCancelled)).Inc()
	e.events.Publish(ctx, events.New(events.KindTaskCancelled, map[string]any{
		"task_id": taskID.String(),
	}))

	e.logger.Info("task cancelled", "task_id", taskID)
	return nil
}

// loadTask читает task, транслируя ErrNotFound.
func (e *Engine) loadTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := e.tasks.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// addActive регистрирует task как выполняемый.
func (e *Engine) addActive(taskID uuid.UUID) (*activeTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.active[taskID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskAlreadyActive, taskID)
	}
	state := &activeTask{}
	e.active[taskID] = state
	telemetry.ActiveTasks.Set(float64(len(e.active)))
	return state, nil
}

// removeActive снимает task с выполнения.
func (e *Engine) removeActive(taskID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, taskID)
	telemetry.ActiveTasks.Set(float64(len(e.active)))
}

// ActiveCount возвращает число выполняемых tasks.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
