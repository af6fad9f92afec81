package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/store"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules store.ScheduleStore
	engine    *engine.Engine
	resources *resource.Registry
	publisher *mq.Publisher
	logger    *slog.Logger
	batchSize int

	// processed — idempotency keys уже обработанных запусков.
	// Защищает от повторного создания task, если next_due_at
	// не успел обновиться (например, упал Put).
	processed map[string]time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules store.ScheduleStore
	Engine    *engine.Engine

	// Resources — registry для периодической уборки истёкших locks
	// (опционально).
	Resources *resource.Registry

	// Publisher — для публикации task.pending при AutoExecute (опционально).
	Publisher *mq.Publisher

	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		engine:    cfg.Engine,
		resources: cfg.Resources,
		publisher: cfg.Publisher,
		logger:    logger,
		batchSize: batchSize,
		processed: make(map[string]time.Time),
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт task через engine
// 3. Обновляет next_due_at
// 4. Публикует task.pending при AutoExecute
// 5. Убирает истёкшие resource locks
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	due, err := s.listDue(ctx, now)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(due) > 0 {
		s.logger.Debug("found due schedules", "count", len(due))

		var processed, created int
		for i := range due {
			sched := &due[i]

			taskCreated, err := s.processSchedule(ctx, sched, now)
			if err != nil {
				s.logger.Error("failed to process schedule",
					"schedule_id", sched.ID,
					"schedule_name", sched.Name,
					"error", err,
				)
				// Продолжаем обработку остальных
				continue
			}

			processed++
			if taskCreated {
				created++
			}
		}

		s.logger.Info("scheduler tick completed",
			"due", len(due),
			"processed", processed,
			"tasks_created", created,
		)
	}

	if s.resources != nil {
		if swept := s.resources.SweepExpiredLocks(now); swept > 0 {
			s.logger.Debug("swept expired resource locks", "count", swept)
		}
	}

	s.pruneProcessed(now)
	return nil
}

// listDue возвращает due schedules, не больше batchSize.
func (s *Scheduler) listDue(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	all, err := s.schedules.List(ctx)
	if err != nil {
		return nil, err
	}

	var due []domain.Schedule
	for i := range all {
		if all[i].IsDue(now) {
			due = append(due, all[i])
			if len(due) >= s.batchSize {
				break
			}
		}
	}
	return due, nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если task был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// Idempotency key: "{schedule_id}_{next_due_at_unix}".
	// Для одного schedule и конкретного времени создаётся только один task.
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	if _, seen := s.processed[idempKey]; seen {
		s.logger.Debug("task already created (idempotency)",
			"schedule_id", sched.ID,
			"idempotency_key", idempKey,
		)
		return false, s.advance(ctx, sched, uuid.Nil, now)
	}

	task, err := s.engine.CreateTask(ctx, sched.TemplateID, sched.Inputs, sched.Priority)
	if err != nil {
		if errors.Is(err, engine.ErrTemplateNotFound) || errors.Is(err, engine.ErrTemplateInactive) {
			s.logger.Warn("template unavailable for schedule, skipping",
				"schedule_id", sched.ID,
				"template_id", sched.TemplateID,
				"reason", err,
			)
			return false, nil
		}
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("schedule inputs rejected by template schema, skipping",
				"schedule_id", sched.ID,
				"violations", verr.Violations,
			)
			return false, nil
		}
		return false, fmt.Errorf("create task: %w", err)
	}

	s.processed[idempKey] = now

	s.logger.Info("created task from schedule",
		"task_id", task.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"template_id", sched.TemplateID,
	)

	if err := s.advance(ctx, sched, task.ID, now); err != nil {
		return true, err
	}

	// Публикуем task.pending, если schedule требует немедленного выполнения.
	if s.publisher != nil && sched.AutoExecute {
		if err := s.publisher.PublishTaskPending(ctx, task.ID); err != nil {
			// Не фатальная ошибка: task уже в хранилище,
			// engine подхватит его через polling.
			s.logger.Warn("failed to publish task.pending",
				"task_id", task.ID,
				"error", err,
			)
		}
	}

	return true, nil
}

// advance вычисляет и сохраняет следующее время запуска schedule.
func (s *Scheduler) advance(ctx context.Context, sched *domain.Schedule, taskID uuid.UUID, now time.Time) error {
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		return nil
	}

	if taskID != uuid.Nil {
		sched.RecordRun(taskID, nextDue)
	} else {
		sched.NextDueAt = &nextDue
		sched.UpdatedAt = now
	}

	if err := s.schedules.Put(ctx, sched); err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

// pruneProcessed выбрасывает idempotency keys старше суток.
func (s *Scheduler) pruneProcessed(now time.Time) {
	for key, at := range s.processed {
		if now.Sub(at) > 24*time.Hour {
			delete(s.processed, key)
		}
	}
}
