package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/invoker"
	"github.com/shaiso/Dirigent/internal/schema"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// defaultInvokeTimeout — жёсткая верхняя граница вызова, если
// вызывающая сторона не задала таймаут.
const defaultInvokeTimeout = 30 * time.Second

// Registry — реестр capabilities.
type Registry struct {
	store   store.CapabilityStore
	runners *invoker.Registry
	events  events.Publisher
	logger  *slog.Logger

	// defaultTimeout — таймаут вызова по умолчанию.
	defaultTimeout time.Duration

	// countersMu сериализует read-modify-write счётчиков descriptor'а.
	countersMu sync.Mutex
}

// Config — конфигурация Registry.
type Config struct {
	// Store — хранилище descriptors.
	Store store.CapabilityStore

	// Runners — реестр runners (опционально; nil — встроенные).
	Runners *invoker.Registry

	// Events — канал уведомлений (опционально).
	Events events.Publisher

	// DefaultTimeout — таймаут вызова по умолчанию (default: 30s).
	DefaultTimeout time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Registry.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runners := cfg.Runners
	if runners == nil {
		runners = invoker.NewRegistry()
	}
	pub := cfg.Events
	if pub == nil {
		pub = events.Nop{}
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	return &Registry{
		store:          cfg.Store,
		runners:        runners,
		events:         pub,
		logger:         logger,
		defaultTimeout: timeout,
	}
}

// Register регистрирует descriptor. Идемпотентна по ID: повторная
// регистрация заменяет схемы и авторизацию, но сохраняет накопленные
// счётчики и время первой регистрации.
func (r *Registry) Register(ctx context.Context, d *domain.CapabilityDescriptor) (*domain.CapabilityDescriptor, error) {
	if d.ID == "" || d.Runner == "" {
		return nil, fmt.Errorf("%w: id and runner are required", ErrInvalidDescriptor)
	}

	reg := *d

	existing, err := r.store.Get(ctx, d.ID)
	switch {
	case err == nil:
		reg.Invocations = existing.Invocations
		reg.Successes = existing.Successes
		reg.Failures = existing.Failures
		reg.TotalLatencyMs = existing.TotalLatencyMs
		reg.LastInvokedAt = existing.LastInvokedAt
		reg.CreatedAt = existing.CreatedAt
	case errors.Is(err, store.ErrNotFound):
		reg.Invocations = 0
		reg.Successes = 0
		reg.Failures = 0
		reg.TotalLatencyMs = 0
		reg.LastInvokedAt = nil
		reg.CreatedAt = time.Now()
	default:
		return nil, fmt.Errorf("get capability: %w", err)
	}

	if err := r.store.Put(ctx, &reg); err != nil {
		return nil, fmt.Errorf("put capability: %w", err)
	}

	r.events.Publish(ctx, events.New(events.KindCapabilityRegistered, map[string]any{
		"capability_id": reg.ID,
		"category":      reg.Category,
		"runner":        reg.Runner,
	}))

	r.logger.Debug("capability registered",
		"capability_id", reg.ID,
		"runner", reg.Runner,
	)
	return &reg, nil
}

// InvocationResult — результат вызова capability.
type InvocationResult struct {
	// CapabilityID — вызванная capability.
	CapabilityID string `json:"capability_id"`

	// Success — флаг успеха делегированного исполнения.
	Success bool `json:"success"`

	// Output — выходные данные при успехе.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст ошибки при неуспехе.
	Error string `json:"error,omitempty"`

	// LatencyMs — длительность вызова.
	LatencyMs int64 `json:"latency_ms"`

	// Timestamp — время завершения вызова.
	Timestamp time.Time `json:"timestamp"`
}

// Invoke вызывает capability.
//
// Структурные отказы (NotFound, Unauthorized, SchemaViolation)
// возвращаются ошибкой до делегирования и в счётчики не попадают.
// Всё, что происходит после пересечения границы исполнения —
// таймаут, ошибка runner'а, нереализованный runner — фиксируется
// в счётчиках и возвращается как InvocationResult с Success=false.
func (r *Registry) Invoke(ctx context.Context, capabilityID string, input map[string]any, requesterID string, timeout time.Duration) (*InvocationResult, error) {
	d, err := r.load(ctx, capabilityID)
	if err != nil {
		return nil, err
	}

	if !d.IsAuthorized(requesterID) {
		return nil, fmt.Errorf("%w: %s may not invoke %s", ErrUnauthorized, requesterID, capabilityID)
	}

	if res := schema.Validate(input, d.InputSchema); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, res.ErrorList())
	}

	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	output, runErr := r.delegate(invokeCtx, d, input)
	latency := time.Since(started)

	result := &InvocationResult{
		CapabilityID: capabilityID,
		LatencyMs:    latency.Milliseconds(),
		Timestamp:    time.Now(),
	}

	switch {
	case runErr != nil && errors.Is(invokeCtx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Sprintf("invocation timed out after %s", timeout)
	case runErr != nil:
		result.Error = runErr.Error()
	case output.Error != "":
		result.Output = output.Data
		result.Error = output.Error
	default:
		result.Success = true
		result.Output = output.Data
	}

	if result.Success && !d.OutputSchema.IsEmpty() {
		if res := schema.Validate(result.Output, d.OutputSchema); !res.Valid {
			// Нарушение выходной схемы фиксируется, но вызов не проваливает.
			r.logger.Warn("capability output violates schema",
				"capability_id", capabilityID,
				"violations", res.ErrorList(),
			)
			r.events.Publish(ctx, events.New(events.KindOutputSchemaViolated, map[string]any{
				"capability_id": capabilityID,
				"violations":    res.Errors,
			}))
		}
	}

	if err := r.recordInvocation(ctx, capabilityID, result); err != nil {
		r.logger.Error("failed to record invocation metrics",
			"capability_id", capabilityID,
			"error", err,
		)
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	telemetry.CapabilityInvocations.WithLabelValues(capabilityID, outcome).Inc()
	telemetry.CapabilityLatency.WithLabelValues(capabilityID).Observe(latency.Seconds())

	r.events.Publish(ctx, events.New(events.KindCapabilityInvoked, map[string]any{
		"capability_id": capabilityID,
		"requester_id":  requesterID,
		"success":       result.Success,
		"latency_ms":    result.LatencyMs,
	}))

	return result, nil
}

// delegate пересекает границу внешнего исполнения.
func (r *Registry) delegate(ctx context.Context, d *domain.CapabilityDescriptor, input map[string]any) (*invoker.Output, error) {
	runner, err := r.runners.Get(d.Runner)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, input, d.Config)
}

// recordInvocation обновляет счётчики descriptor'а.
// Read-modify-write сериализуется: конкурентные вызовы не теряют счёт.
func (r *Registry) recordInvocation(ctx context.Context, capabilityID string, res *InvocationResult) error {
	r.countersMu.Lock()
	defer r.countersMu.Unlock()

	d, err := r.store.Get(ctx, capabilityID)
	if err != nil {
		return fmt.Errorf("get capability: %w", err)
	}
	d.RecordInvocation(res.Success, res.LatencyMs, res.Timestamp)
	if err := r.store.Put(ctx, d); err != nil {
		return fmt.Errorf("put capability: %w", err)
	}
	return nil
}

// load читает descriptor, транслируя ErrNotFound.
func (r *Registry) load(ctx context.Context, id string) (*domain.CapabilityDescriptor, error) {
	d, err := r.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get capability: %w", err)
	}
	return d, nil
}

// Get возвращает descriptor по ID.
func (r *Registry) Get(ctx context.Context, id string) (*domain.CapabilityDescriptor, error) {
	return r.load(ctx, id)
}
