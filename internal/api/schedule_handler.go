package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/scheduler"
)

// ListSchedules возвращает все schedules.
// GET /api/v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.List(r.Context())
	if HandleDomainError(w, h.logger, err) {
		return
	}
	List(w, schedules, len(schedules))
}

// CreateSchedule создаёт schedule для template.
// POST /api/v1/templates/{id}/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	templateID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.CronExpr == "" && req.IntervalSec <= 0 {
		BadRequest(w, "either cron_expr or interval_sec is required")
		return
	}
	if req.CronExpr != "" {
		if err := scheduler.ValidateCronExpr(req.CronExpr); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	// Проверяем, что template существует
	if _, err := h.catalog.Get(r.Context(), templateID); HandleDomainError(w, h.logger, err) {
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	now := time.Now()
	sched := &domain.Schedule{
		ID:          uuid.New(),
		TemplateID:  templateID,
		Name:        req.Name,
		CronExpr:    req.CronExpr,
		IntervalSec: req.IntervalSec,
		Timezone:    timezone,
		Enabled:     req.Enabled,
		AutoExecute: req.AutoExecute,
		Inputs:      req.Inputs,
		Priority:    domain.ParsePriority(req.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	nextDue, err := scheduler.CalculateInitialNextDue(sched)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sched.NextDueAt = &nextDue

	if err := h.schedules.Put(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, sched)
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	sched, err := h.schedules.Get(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, sched)
}

// UpdateSchedule обновляет schedule.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sched, err := h.schedules.Get(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.CronExpr != nil {
		if *req.CronExpr != "" {
			if err := scheduler.ValidateCronExpr(*req.CronExpr); err != nil {
				BadRequest(w, err.Error())
				return
			}
		}
		sched.CronExpr = *req.CronExpr
	}
	if req.IntervalSec != nil {
		sched.IntervalSec = *req.IntervalSec
	}
	if req.Timezone != nil {
		sched.Timezone = *req.Timezone
	}
	if req.AutoExecute != nil {
		sched.AutoExecute = *req.AutoExecute
	}
	if req.Inputs != nil {
		sched.Inputs = *req.Inputs
	}

	if sched.CronExpr == "" && sched.IntervalSec <= 0 {
		BadRequest(w, "either cron_expr or interval_sec is required")
		return
	}

	// Расписание изменилось — пересчитываем следующий запуск
	nextDue, err := scheduler.CalculateNextDue(sched, time.Now())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sched.NextDueAt = &nextDue
	sched.UpdatedAt = time.Now()

	if err := h.schedules.Put(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, sched)
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.schedules.Delete(r.Context(), id); HandleDomainError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает schedule.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sched, err := h.schedules.Get(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	sched.Enabled = req.Enabled
	sched.UpdatedAt = time.Now()

	// При включении пересчитываем next_due_at, чтобы не навёрстывать
	// пропущенные запуски
	if req.Enabled {
		if nextDue, err := scheduler.CalculateNextDue(sched, time.Now()); err == nil {
			sched.NextDueAt = &nextDue
		}
	}

	if err := h.schedules.Put(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, sched)
}
