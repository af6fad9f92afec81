package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// ListTemplates возвращает список templates.
// GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.catalog.List(r.Context())
	if HandleDomainError(w, h.logger, err) {
		return
	}
	List(w, templates, len(templates))
}

// PublishTemplate публикует новый template.
// POST /api/v1/templates
func (h *Handler) PublishTemplate(w http.ResponseWriter, r *http.Request) {
	var req PublishTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	tpl, err := h.catalog.Publish(r.Context(), &domain.WorkflowTemplate{
		Name:        req.Name,
		Lineage:     req.Lineage,
		InputSchema: req.InputSchema,
		Steps:       req.Steps,
	})
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Created(w, tpl)
}

// GetTemplate возвращает template по ID.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	tpl, err := h.catalog.Get(r.Context(), id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, tpl)
}

// GetLatestTemplate возвращает последнюю версию в линейке.
// GET /api/v1/templates/latest/{lineage}
func (h *Handler) GetLatestTemplate(w http.ResponseWriter, r *http.Request) {
	lineage := r.PathValue("lineage")
	if lineage == "" {
		BadRequest(w, "lineage is required")
		return
	}

	tpl, err := h.catalog.Latest(r.Context(), lineage)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, tpl)
}

// DeactivateTemplate деактивирует template.
// POST /api/v1/templates/{id}/deactivate
func (h *Handler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	if err := h.catalog.Deactivate(r.Context(), id); HandleDomainError(w, h.logger, err) {
		return
	}

	NoContent(w)
}
