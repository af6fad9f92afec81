package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/schema"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// Execute выполняет task от первого шага до терминального статуса.
//
// Допустим только из PENDING. Шаги выполняются строго по ordinal;
// результат каждого шага записывается до начала следующего. Падение
// шага не выбрасывается наружу: task переводится в FAILED, а ошибка
// фиксируется в его состоянии. Возвращаемая ошибка Execute — только
// структурная (task не найден, не PENDING, недоступно хранилище).
func (e *Engine) Execute(ctx context.Context, taskID uuid.UUID) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire execution slot: %w", err)
	}
	defer e.sem.Release(1)

	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: cannot execute task in status %s", ErrInvalidState, task.Status)
	}

	state, err := e.addActive(taskID)
	if err != nil {
		return err
	}
	defer e.removeActive(taskID)

	tpl, err := e.catalog.Get(ctx, task.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", task.TemplateID, err)
	}

	task.MarkRunning()
	if err := e.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	telemetry.TaskTransitions.WithLabelValues(string(domain.TaskStatusRunning)).Inc()
	e.events.Publish(ctx, events.New(events.KindTaskStarted, map[string]any{
		"task_id": task.ID.String(),
	}))

	logger := e.logger.With("task_id", task.ID, "template", tpl.Name)
	logger.Info("task execution started", "steps", tpl.TotalSteps())

	steps := make([]domain.Step, len(tpl.Steps))
	copy(steps, tpl.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Ordinal < steps[j].Ordinal })

	for i := range steps {
		step := &steps[i]

		// Отмена проверяется между шагами: in-flight шаг не прерывается.
		if cancelled, at := state.isCancelled(); cancelled {
			logger.Info("task cancelled before step", "ordinal", step.Ordinal)
			return e.persistCancelled(ctx, task, at)
		}

		res := e.executeStep(ctx, task, step, logger)

		if cancelled, at := state.isCancelled(); cancelled {
			// Результат in-flight шага записывается для аудита,
			// но дальнейшие шаги не выполняются.
			task.AppendResult(res)
			logger.Info("task cancelled mid-step, result recorded for audit",
				"ordinal", step.Ordinal,
				"success", res.Success,
			)
			return e.persistCancelled(ctx, task, at)
		}

		task.AppendResult(res)
		if !res.Success {
			if ok, at := state.tryFinish(); !ok {
				logger.Info("task cancelled before failure recorded", "ordinal", step.Ordinal)
				return e.persistCancelled(ctx, task, at)
			}
			task.MarkFailed(fmt.Sprintf("step %d (%s) failed: %s", step.Ordinal, res.Capability, res.Error))
			if err := e.tasks.Put(ctx, task); err != nil {
				return fmt.Errorf("put task: %w", err)
			}
			telemetry.TaskTransitions.WithLabelValues(string(domain.TaskStatusFailed)).Inc()
			e.events.Publish(ctx, events.New(events.KindTaskFailed, map[string]any{
				"task_id": task.ID.String(),
				"step":    step.Ordinal,
				"error":   res.Error,
			}))
			logger.Warn("task failed",
				"ordinal", step.Ordinal,
				"error", res.Error,
			)
			return nil
		}

		if err := e.tasks.Put(ctx, task); err != nil {
			return fmt.Errorf("put task: %w", err)
		}
		e.events.Publish(ctx, events.New(events.KindStepRecorded, map[string]any{
			"task_id": task.ID.String(),
			"step":    step.Ordinal,
		}))
	}

	// Фиксируем право на терминальную запись: Cancel, успевший после
	// проверки за последним шагом, не должен быть перезаписан COMPLETED
	if ok, at := state.tryFinish(); !ok {
		logger.Info("task cancelled before completion recorded")
		return e.persistCancelled(ctx, task, at)
	}

	task.MarkCompleted()
	if err := e.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	telemetry.TaskTransitions.WithLabelValues(string(domain.TaskStatusCompleted)).Inc()
	e.events.Publish(ctx, events.New(events.KindTaskCompleted, map[string]any{
		"task_id": task.ID.String(),
	}))

	logger.Info("task completed", "duration_ms", task.Duration().Milliseconds())
	return nil
}

// executeStep выполняет один шаг и возвращает его результат.
// Любая ошибка на пути шага — это failed StepResult, не error.
func (e *Engine) executeStep(ctx context.Context, task *domain.Task, step *domain.Step, logger *slog.Logger) domain.StepResult {
	res := domain.StepResult{
		Ordinal:    step.Ordinal,
		Capability: step.Capability,
		HolderID:   e.holderID,
		Timestamp:  time.Now(),
	}

	d, err := e.resolveCapability(ctx, step)
	if err != nil {
		res.Error = err.Error()
		res.Timestamp = time.Now()
		return res
	}
	res.Capability = d.ID

	input := e.effectiveInput(task)

	if vr := schema.Validate(input, step.InputSchema); !vr.Valid {
		res.Error = "step input schema violation: " + vr.ErrorList()
		res.Timestamp = time.Now()
		return res
	}

	started := time.Now()
	inv, err := e.capabilities.Invoke(ctx, d.ID, input, e.holderID, e.stepTimeout)
	telemetry.StepDuration.WithLabelValues(d.ID).Observe(time.Since(started).Seconds())

	if err != nil {
		res.Error = err.Error()
		res.Timestamp = time.Now()
		return res
	}

	res.Success = inv.Success
	res.Output = inv.Output
	res.Error = inv.Error
	res.LatencyMs = inv.LatencyMs
	res.Timestamp = inv.Timestamp

	logger.Debug("step executed",
		"ordinal", step.Ordinal,
		"capability", d.ID,
		"success", res.Success,
		"latency_ms", res.LatencyMs,
	)
	return res
}

// resolveCapability находит descriptor для шага.
//
// Если объявленная capability не авторизует исполнителя engine'а,
// применяется настроенная fallback-политика: FallbackCategory подменяет
// её детерминированно выбранной capability той же категории (наименьший
// ID среди авторизующих). Незарегистрированная capability проваливает
// шаг при любой политике.
func (e *Engine) resolveCapability(ctx context.Context, step *domain.Step) (*domain.CapabilityDescriptor, error) {
	d, err := e.capabilities.Get(ctx, step.Capability)
	if err != nil {
		return nil, err
	}

	if d.IsAuthorized(e.holderID) {
		return d, nil
	}

	if e.fallback != FallbackCategory {
		return nil, fmt.Errorf("%w: %s may not invoke %s", capability.ErrUnauthorized, e.holderID, d.ID)
	}

	fallback, err := e.capabilities.FirstInCategory(ctx, d.Category, e.holderID)
	if err != nil {
		return nil, err
	}

	e.logger.Warn("capability fallback applied",
		"declared", step.Capability,
		"selected", fallback.ID,
		"category", d.Category,
	)
	return fallback, nil
}

// effectiveInput строит вход шага: исходный вход task плюс outputs
// предыдущих успешных шагов (в порядке записи; поздние ключи
// перекрывают ранние).
func (e *Engine) effectiveInput(task *domain.Task) map[string]any {
	out := make(map[string]any, len(task.Input))
	for k, v := range task.Input {
		out[k] = v
	}
	for i := range task.Results {
		res := &task.Results[i]
		if !res.Success {
			continue
		}
		for k, v := range res.Output {
			out[k] = v
		}
	}
	return out
}

// persistCancelled дописывает состояние отменённого task.
// Статус CANCELLED уже выставлен Cancel()'ом; здесь сохраняются
// накопленные результаты с тем же временем завершения.
func (e *Engine) persistCancelled(ctx context.Context, task *domain.Task, at time.Time) error {
	task.Status = domain.TaskStatusCancelled
	task.FinishedAt = &at
	if err := e.tasks.Put(ctx, task); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// IsStructural сообщает, является ли ошибка Execute структурной
// (а не инфраструктурной): такие ошибки бессмысленно ретраить.
func IsStructural(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrTaskAlreadyActive)
}
