package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
)

// ListTasks возвращает список tasks с фильтрацией по статусу.
// GET /api/v1/tasks?status=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := domain.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := h.engine.ListTasks(r.Context(), status)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	List(w, tasks, len(tasks))
}

// TaskStatistics возвращает агрегированную статистику по tasks.
// GET /api/v1/tasks/stats
func (h *Handler) TaskStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Statistics(r.Context())
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, stats)
}

// CreateTask создаёт task из template.
// POST /api/v1/templates/{id}/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	task, err := h.engine.CreateTask(r.Context(), templateID, req.Input, domain.ParsePriority(req.Priority))
	if HandleDomainError(w, h.logger, err) {
		return
	}

	if req.Execute {
		h.startExecution(r.Context(), task.ID)
	}

	Created(w, task)
}

// GetTaskStatus возвращает состояние task.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	status, err := h.engine.Status(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, status)
}

// ExecuteTask запускает выполнение task.
// POST /api/v1/tasks/{id}/execute
//
// Выполнение асинхронное: ответ 202 означает, что task принят,
// результат наблюдается через GET /api/v1/tasks/{id}.
func (h *Handler) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	// Проверяем, что task существует и в допустимом статусе
	status, err := h.engine.Status(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	if status.Status != domain.TaskStatusPending {
		InvalidState(w, "task is not pending")
		return
	}

	h.startExecution(r.Context(), id)

	JSON(w, http.StatusAccepted, DataResponse{Data: map[string]string{
		"task_id": id.String(),
		"status":  "accepted",
	}})
}

// CancelTask отменяет task.
// POST /api/v1/tasks/{id}/cancel
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	if err := h.engine.Cancel(r.Context(), id); HandleDomainError(w, h.logger, err) {
		return
	}

	status, err := h.engine.Status(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, status)
}

// startExecution запускает выполнение task: через очередь, если
// publisher настроен, иначе в фоновой горутине этого процесса.
func (h *Handler) startExecution(ctx context.Context, taskID uuid.UUID) {
	if h.publisher != nil {
		err := h.publisher.PublishTaskPending(ctx, taskID)
		if err == nil {
			return
		}
		h.logger.Warn("failed to publish task.pending, falling back to in-process execution",
			"task_id", taskID,
			"error", err,
		)
	}

	go func() {
		// Выполнение переживает HTTP запрос
		if err := h.engine.Execute(context.Background(), taskID); err != nil && !engine.IsStructural(err) {
			h.logger.Error("in-process task execution failed",
				"task_id", taskID,
				"error", err,
			)
		}
	}()
}
