package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — экземпляр выполнения workflow template с конкретным входом.
//
// Task создаётся Engine'ом после успешной валидации входа и дальше
// мутируется только Engine'ом. После достижения терминального статуса
// task неизменяем (кроме архивации).
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// TemplateID — ссылка на WorkflowTemplate.
	TemplateID uuid.UUID `json:"template_id"`

	// Input — входные данные, провалидированные против InputSchema template.
	Input map[string]any `json:"input,omitempty"`

	// Priority — приоритет task.
	Priority Priority `json:"priority"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// CurrentStep — ordinal последнего завершённого шага.
	// 0 — ни один шаг ещё не завершён.
	CurrentStep int `json:"current_step"`

	// Results — результаты шагов в порядке добавления.
	// Append-only: retry шага добавляет новый StepResult, а не перезаписывает.
	Results []StepResult `json:"results,omitempty"`

	// Errors — накопленные ошибки (валидация, падения шагов).
	// Достаточны, чтобы восстановить: что упало, на каком шаге и почему.
	Errors []string `json:"errors,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StepResult — результат одной попытки выполнения шага.
type StepResult struct {
	// Ordinal — порядковый номер шага.
	Ordinal int `json:"ordinal"`

	// Capability — идентификатор вызванной capability.
	Capability string `json:"capability"`

	// HolderID — идентификатор держателя capability, который выполнял шаг.
	HolderID string `json:"holder_id,omitempty"`

	// Output — сырой результат выполнения.
	Output map[string]any `json:"output,omitempty"`

	// Success — флаг успеха.
	Success bool `json:"success"`

	// Error — текст ошибки при Success=false.
	Error string `json:"error,omitempty"`

	// LatencyMs — длительность вызова capability.
	LatencyMs int64 `json:"latency_ms"`

	// Timestamp — время записи результата.
	Timestamp time.Time `json:"timestamp"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если task ещё не завершён.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task в терминальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkCompleted переводит task в статус COMPLETED.
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(errMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	if errMsg != "" {
		t.Errors = append(t.Errors, errMsg)
	}
}

// MarkCancelled переводит task в статус CANCELLED.
func (t *Task) MarkCancelled() {
	now := time.Now()
	t.Status = TaskStatusCancelled
	t.FinishedAt = &now
}

// AppendResult добавляет результат шага и продвигает CurrentStep при успехе.
func (t *Task) AppendResult(res StepResult) {
	t.Results = append(t.Results, res)
	if res.Success {
		t.CurrentStep = res.Ordinal
	}
}

// ResultFor возвращает последний результат для шага с данным ordinal.
func (t *Task) ResultFor(ordinal int) (*StepResult, bool) {
	for i := len(t.Results) - 1; i >= 0; i-- {
		if t.Results[i].Ordinal == ordinal {
			return &t.Results[i], true
		}
	}
	return nil, false
}
