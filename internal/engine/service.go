package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/mq"
)

// Start запускает Engine в сервисном режиме.
//
// Запускает:
//   - Consumer для tasks.pending (event-driven, если conn != nil)
//   - Polling горутину для fallback
//
// conn может быть nil: тогда engine работает только на polling.
func (e *Engine) Start(ctx context.Context, conn *mq.Connection) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting engine",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
		"holder_id", e.holderID,
		"fallback", e.fallback,
	)

	if conn != nil {
		e.consumer = mq.NewTaskConsumer(conn, e.logger, e.handleTaskPending, 10)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("task consumer error", "error", err)
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("engine started")
	return nil
}

// Stop останавливает Engine.
// Ждёт завершения запущенных горутин; in-flight tasks дорабатывают
// до терминального статуса.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.consumer != nil {
		e.consumer.Stop()
	}

	e.wg.Wait()

	e.logger.Info("engine stopped", "active_tasks", e.ActiveCount())
}

// IsStopped проверяет, остановлен ли Engine.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// handleTaskPending обрабатывает команду на выполнение task из очереди.
func (e *Engine) handleTaskPending(ctx context.Context, taskID uuid.UUID) error {
	if err := e.Execute(ctx, taskID); err != nil {
		if IsStructural(err) {
			// Task не найден / не PENDING / уже выполняется — не ошибка доставки
			e.logger.Debug("task.pending skipped", "task_id", taskID, "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// pollLoop — цикл polling для fallback.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем tasks, созданные пока были выключены)
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling: берёт пачку PENDING tasks
// и запускает их выполнение.
func (e *Engine) poll(ctx context.Context) {
	pending, err := e.ListTasks(ctx, domain.TaskStatusPending)
	if err != nil {
		e.logger.Error("failed to list pending tasks", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}
	if len(pending) > e.batchSize {
		pending = pending[:e.batchSize]
	}

	e.logger.Debug("poll found pending tasks", "count", len(pending))

	for i := range pending {
		task := &pending[i]

		if e.isActive(task.ID) {
			continue
		}

		e.wg.Add(1)
		go func(taskID uuid.UUID) {
			defer e.wg.Done()
			if err := e.Execute(ctx, taskID); err != nil && !IsStructural(err) {
				e.logger.Error("failed to execute task from poll",
					"task_id", taskID,
					"error", err,
				)
			}
		}(task.ID)
	}
}

// isActive проверяет, выполняется ли task.
func (e *Engine) isActive(taskID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, exists := e.active[taskID]
	return exists
}
