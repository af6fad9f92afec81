package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// TaskStatus — срез состояния task для внешнего наблюдателя.
//
// Вызывающая сторона узнаёт о падениях долгоживущего task именно
// отсюда: Execute ошибки исполнения не возвращает.
type TaskStatus struct {
	TaskID      uuid.UUID           `json:"task_id"`
	Status      domain.TaskStatus   `json:"status"`
	CurrentStep int                 `json:"current_step"`
	TotalSteps  int                 `json:"total_steps"`
	Percentage  float64             `json:"percentage"`
	StepResults []domain.StepResult `json:"step_results,omitempty"`
	Errors      []string            `json:"errors,omitempty"`
}

// Status возвращает текущее состояние task.
func (e *Engine) Status(ctx context.Context, taskID uuid.UUID) (*TaskStatus, error) {
	task, err := e.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	total := 0
	if tpl, err := e.catalog.Get(ctx, task.TemplateID); err == nil {
		total = tpl.TotalSteps()
	}

	percentage := 0.0
	if total > 0 {
		percentage = float64(task.CurrentStep) / float64(total) * 100
	}

	return &TaskStatus{
		TaskID:      task.ID,
		Status:      task.Status,
		CurrentStep: task.CurrentStep,
		TotalSteps:  total,
		Percentage:  percentage,
		StepResults: task.Results,
		Errors:      task.Errors,
	}, nil
}

// Statistics — агрегированная статистика по всем tasks.
type Statistics struct {
	Total             int                       `json:"total"`
	ByStatus          map[domain.TaskStatus]int `json:"by_status"`
	ByPriority        map[domain.Priority]int   `json:"by_priority"`
	ByTemplate        map[string]int            `json:"by_template"`
	AverageDurationMs float64                   `json:"average_duration_ms"`
}

// Statistics возвращает агрегированную статистику engine.
//
// Средняя длительность считается только по завершённым tasks
// с зафиксированными started/finished.
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	all, err := e.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	stats := &Statistics{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.Priority]int),
		ByTemplate: make(map[string]int),
	}

	var totalDuration int64
	var finished int

	for i := range all {
		task := &all[i]
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++
		stats.ByTemplate[task.TemplateID.String()]++

		if d := task.Duration(); d > 0 {
			totalDuration += d.Milliseconds()
			finished++
		}
	}

	if finished > 0 {
		stats.AverageDurationMs = float64(totalDuration) / float64(finished)
	}
	return stats, nil
}

// ListTasks возвращает tasks, опционально отфильтрованные по статусу.
func (e *Engine) ListTasks(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	all, err := e.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if status == "" {
		return all, nil
	}
	var out []domain.Task
	for i := range all {
		if all[i].Status == status {
			out = append(out, all[i])
		}
	}
	return out, nil
}
