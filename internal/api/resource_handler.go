package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/resource"
)

// SearchResources возвращает resources по запросу и фильтрам.
// GET /api/v1/resources?q=...&type=...&owner_id=...&tag=...&access_level=...&from=...&to=...
//
// from/to — границы UpdatedAt в RFC 3339, обе опциональны.
func (h *Handler) SearchResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := resource.Filters{
		Type:        q.Get("type"),
		OwnerID:     q.Get("owner_id"),
		AccessLevel: domain.AccessLevel(q.Get("access_level")),
	}
	if tags, ok := q["tag"]; ok {
		filters.Tags = tags
	}

	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			BadRequest(w, "invalid from time, expected RFC 3339")
			return
		}
		filters.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			BadRequest(w, "invalid to time, expected RFC 3339")
			return
		}
		filters.To = to
	}

	found, err := h.resources.Search(r.Context(), q.Get("q"), filters)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	result := make([]ResourceResponse, len(found))
	for i := range found {
		result[i] = ResourceFromDomain(&found[i])
	}
	List(w, result, len(result))
}

// ResourceStatistics возвращает агрегированную статистику по resources.
// GET /api/v1/resources/stats
func (h *Handler) ResourceStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.resources.Stats(r.Context())
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, stats)
}

// RegisterResource регистрирует новый resource.
// POST /api/v1/resources
func (h *Handler) RegisterResource(w http.ResponseWriter, r *http.Request) {
	var req RegisterResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	res, err := h.resources.Register(r.Context(), resource.RegisterParams{
		Name:        req.Name,
		Type:        req.Type,
		Content:     req.Content,
		OwnerID:     requesterID(r.Header.Get(requesterHeader)),
		AccessLevel: domain.AccessLevel(req.AccessLevel),
		Tags:        req.Tags,
	})
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Created(w, ResourceFromDomain(res))
}

// GetResource возвращает resource с содержимым.
// GET /api/v1/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	res, err := h.resources.Get(r.Context(), id, requesterID(r.Header.Get(requesterHeader)))
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, ResourceContentResponse{
		ResourceResponse: ResourceFromDomain(res),
		Content:          res.Content,
	})
}

// UpdateResource обновляет содержимое resource.
// PUT /api/v1/resources/{id}
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	var req UpdateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	res, err := h.resources.Update(r.Context(), id, requesterID(r.Header.Get(requesterHeader)), req.Content)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, ResourceFromDomain(res))
}

// DeleteResource удаляет resource вместе с архивом версий.
// DELETE /api/v1/resources/{id}
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	err = h.resources.Delete(r.Context(), id, requesterID(r.Header.Get(requesterHeader)))
	if HandleDomainError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// ShareResource выдаёт grantee доступ к resource.
// POST /api/v1/resources/{id}/share
func (h *Handler) ShareResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	var req ShareResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.GranteeID == "" {
		BadRequest(w, "grantee_id is required")
		return
	}

	level := domain.GrantLevel(req.Level)
	if level == "" {
		level = domain.GrantRead
	}

	res, err := h.resources.Share(r.Context(), id, requesterID(r.Header.Get(requesterHeader)), req.GranteeID, level)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, ResourceFromDomain(res))
}

// LockResource захватывает advisory lock на resource.
// POST /api/v1/resources/{id}/lock
func (h *Handler) LockResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	var req LockResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	timeout := time.Duration(req.TimeoutSec) * time.Second

	lock, err := h.resources.Lock(r.Context(), id, requesterID(r.Header.Get(requesterHeader)), timeout)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, lock)
}

// UnlockResource снимает lock с resource.
// POST /api/v1/resources/{id}/unlock
func (h *Handler) UnlockResource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	err = h.resources.Unlock(r.Context(), id, requesterID(r.Header.Get(requesterHeader)))
	if HandleDomainError(w, h.logger, err) {
		return
	}

	NoContent(w)
}

// ListResourceVersions возвращает архивные версии resource.
// GET /api/v1/resources/{id}/versions
func (h *Handler) ListResourceVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid resource id")
		return
	}

	versions, err := h.resources.Versions(r.Context(), id, requesterID(r.Header.Get(requesterHeader)))
	if HandleDomainError(w, h.logger, err) {
		return
	}

	List(w, versions, len(versions))
}
