package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Templates
	mux.Handle("GET /api/v1/templates", chain(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("POST /api/v1/templates", chain(http.HandlerFunc(h.PublishTemplate)))
	mux.Handle("GET /api/v1/templates/{id}", chain(http.HandlerFunc(h.GetTemplate)))
	mux.Handle("GET /api/v1/templates/latest/{lineage}", chain(http.HandlerFunc(h.GetLatestTemplate)))
	mux.Handle("POST /api/v1/templates/{id}/deactivate", chain(http.HandlerFunc(h.DeactivateTemplate)))

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /api/v1/tasks/stats", chain(http.HandlerFunc(h.TaskStatistics)))
	mux.Handle("POST /api/v1/templates/{id}/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTaskStatus)))
	mux.Handle("POST /api/v1/tasks/{id}/execute", chain(http.HandlerFunc(h.ExecuteTask)))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", chain(http.HandlerFunc(h.CancelTask)))

	// Resources
	mux.Handle("GET /api/v1/resources", chain(http.HandlerFunc(h.SearchResources)))
	mux.Handle("GET /api/v1/resources/stats", chain(http.HandlerFunc(h.ResourceStatistics)))
	mux.Handle("POST /api/v1/resources", chain(http.HandlerFunc(h.RegisterResource)))
	mux.Handle("GET /api/v1/resources/{id}", chain(http.HandlerFunc(h.GetResource)))
	mux.Handle("PUT /api/v1/resources/{id}", chain(http.HandlerFunc(h.UpdateResource)))
	mux.Handle("DELETE /api/v1/resources/{id}", chain(http.HandlerFunc(h.DeleteResource)))
	mux.Handle("POST /api/v1/resources/{id}/share", chain(http.HandlerFunc(h.ShareResource)))
	mux.Handle("POST /api/v1/resources/{id}/lock", chain(http.HandlerFunc(h.LockResource)))
	mux.Handle("POST /api/v1/resources/{id}/unlock", chain(http.HandlerFunc(h.UnlockResource)))
	mux.Handle("GET /api/v1/resources/{id}/versions", chain(http.HandlerFunc(h.ListResourceVersions)))

	// Capabilities
	mux.Handle("GET /api/v1/capabilities", chain(http.HandlerFunc(h.ListCapabilities)))
	mux.Handle("POST /api/v1/capabilities", chain(http.HandlerFunc(h.RegisterCapability)))
	mux.Handle("GET /api/v1/capabilities/{id}", chain(http.HandlerFunc(h.GetCapability)))
	mux.Handle("GET /api/v1/capabilities/{id}/stats", chain(http.HandlerFunc(h.CapabilityStatistics)))
	mux.Handle("POST /api/v1/capabilities/{id}/invoke", chain(http.HandlerFunc(h.InvokeCapability)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/templates/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Health
	mux.Handle("GET /healthz", chain(http.HandlerFunc(h.Health)))
}

// Health сообщает, что сервис жив.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	Success(w, map[string]string{"status": "ok"})
}
