package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/domain"
)

// ListCapabilities возвращает capabilities по запросу и фильтрам.
// GET /api/v1/capabilities?q=...&category=...&runner=...
func (h *Handler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	found, err := h.capabilities.Search(r.Context(), q.Get("q"), capability.Filters{
		Category: q.Get("category"),
		Runner:   q.Get("runner"),
	})
	if HandleDomainError(w, h.logger, err) {
		return
	}

	List(w, found, len(found))
}

// RegisterCapability регистрирует capability.
// POST /api/v1/capabilities
//
// Повторная регистрация с тем же ID заменяет схемы и авторизацию,
// но сохраняет накопленные счётчики.
func (h *Handler) RegisterCapability(w http.ResponseWriter, r *http.Request) {
	var req RegisterCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	d, err := h.capabilities.Register(r.Context(), &domain.CapabilityDescriptor{
		ID:                req.ID,
		Category:          req.Category,
		Runner:            req.Runner,
		Config:            req.Config,
		InputSchema:       req.InputSchema,
		OutputSchema:      req.OutputSchema,
		AuthorizedHolders: req.AuthorizedHolders,
	})
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Created(w, d)
}

// GetCapability возвращает descriptor по ID.
// GET /api/v1/capabilities/{id}
func (h *Handler) GetCapability(w http.ResponseWriter, r *http.Request) {
	d, err := h.capabilities.Get(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, d)
}

// CapabilityStatistics возвращает показатели capability.
// GET /api/v1/capabilities/{id}/stats
func (h *Handler) CapabilityStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.capabilities.StatsFor(r.Context(), r.PathValue("id"))
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, stats)
}

// InvokeCapability вызывает capability напрямую, минуя engine.
// POST /api/v1/capabilities/{id}/invoke
//
// Результат вызова (включая неуспешный) возвращается с кодом 200:
// ошибка HTTP означает структурный отказ (нет capability, нет прав,
// вход не прошёл схему).
func (h *Handler) InvokeCapability(w http.ResponseWriter, r *http.Request) {
	var req InvokeCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	timeout := time.Duration(req.TimeoutSec) * time.Second

	res, err := h.capabilities.Invoke(r.Context(), r.PathValue("id"), req.Input,
		requesterID(r.Header.Get(requesterHeader)), timeout)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, res)
}
