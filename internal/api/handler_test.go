package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/store"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	caps := capability.New(capability.Config{Store: store.NewMemoryCapabilityStore()})
	cat := catalog.New(store.NewMemoryTemplateStore(), nil)
	resources := resource.New(resource.Config{Store: store.NewMemoryResourceStore()})
	eng := engine.New(engine.Config{
		Tasks:        store.NewMemoryTaskStore(),
		Catalog:      cat,
		Capabilities: caps,
	})

	handler := NewHandler(Config{
		Catalog:      cat,
		Engine:       eng,
		Resources:    resources,
		Capabilities: caps,
		Schedules:    store.NewMemoryScheduleStore(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

// doJSON выполняет запрос с JSON-телом от имени requester.
func doJSON(t *testing.T, mux *http.ServeMux, method, path, requester string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if requester != "" {
		req.Header.Set("X-Requester-ID", requester)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v (body: %s)", err, rec.Body.String())
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var envelope ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error: %v (body: %s)", err, rec.Body.String())
	}
	return envelope.Error
}

func publishTestTemplate(t *testing.T, mux *http.ServeMux, req PublishTemplateRequest) domain.WorkflowTemplate {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/templates", "", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish template: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var tpl domain.WorkflowTemplate
	decodeData(t, rec, &tpl)
	return tpl
}

func TestHealth(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPublishTemplate(t *testing.T) {
	mux := newTestMux(t)

	tpl := publishTestTemplate(t, mux, PublishTemplateRequest{
		Name:  "onboarding",
		Steps: []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})
	if tpl.Version != 1 || !tpl.Active {
		t.Errorf("unexpected template: v%d active=%v", tpl.Version, tpl.Active)
	}

	// Невалидное определение
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/templates", "", PublishTemplateRequest{Name: "empty"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty steps, got %d", rec.Code)
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/templates/7b8f4a10-0000-0000-0000-000000000000", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND code, got %s", detail.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/templates/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestCreateTask_ValidationViolations(t *testing.T) {
	mux := newTestMux(t)

	tpl := publishTestTemplate(t, mux, PublishTemplateRequest{
		Name:        "strict",
		InputSchema: &domain.Schema{Required: []string{"customer_id"}},
		Steps:       []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/templates/%s/tasks", tpl.ID), "",
		CreateTaskRequest{Input: map[string]any{}},
	)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	detail := decodeError(t, rec)
	if len(detail.Violations) != 1 {
		t.Errorf("expected 1 violation, got %v", detail.Violations)
	}
}

func TestCreateAndCancelTask(t *testing.T) {
	mux := newTestMux(t)

	tpl := publishTestTemplate(t, mux, PublishTemplateRequest{
		Name:  "onboarding",
		Steps: []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/templates/%s/tasks", tpl.ID), "",
		CreateTaskRequest{Input: map[string]any{"k": "v"}, Priority: "HIGH"},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var task domain.Task
	decodeData(t, rec, &task)
	if task.Priority != domain.PriorityHigh {
		t.Errorf("expected HIGH priority, got %s", task.Priority)
	}

	// Статус нового task
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/tasks/"+task.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status engine.TaskStatus
	decodeData(t, rec, &status)
	if status.Status != domain.TaskStatusPending {
		t.Errorf("expected PENDING, got %s", status.Status)
	}

	// Отмена
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/cancel", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &status)
	if status.Status != domain.TaskStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", status.Status)
	}

	// Повторная отмена — конфликт состояния
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/cancel", "", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	// Выполнение отменённого task отклоняется
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/execute", "", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestResourceLifecycle(t *testing.T) {
	mux := newTestMux(t)

	// Регистрация от имени alice
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/resources", "alice", RegisterResourceRequest{
		Name:    "report",
		Type:    "document",
		Content: []byte("hello"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var res ResourceResponse
	decodeData(t, rec, &res)
	if res.OwnerID != "alice" {
		t.Errorf("owner should come from requester header, got %s", res.OwnerID)
	}

	// Чужой доступ к private resource
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/resources/"+res.ID.String(), "bob", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	// Share, после чего bob читает
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/resources/"+res.ID.String()+"/share", "alice",
		ShareResourceRequest{GranteeID: "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("share: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/resources/"+res.ID.String(), "bob", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after share, got %d", rec.Code)
	}

	// Update только владельцем
	rec = doJSON(t, mux, http.MethodPut, "/api/v1/resources/"+res.ID.String(), "bob",
		UpdateResourceRequest{Content: []byte("hijack")})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodPut, "/api/v1/resources/"+res.ID.String(), "alice",
		UpdateResourceRequest{Content: []byte("v2")})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &res)
	if res.Version != 2 {
		t.Errorf("expected version 2, got %d", res.Version)
	}

	// Архив версий
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/resources/"+res.ID.String()+"/versions", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("versions: expected 200, got %d", rec.Code)
	}
}

func TestResourceLockConflict(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/resources", "alice", RegisterResourceRequest{
		Name:        "shared",
		Type:        "dataset",
		Content:     []byte("data"),
		AccessLevel: "public",
	})
	var res ResourceResponse
	decodeData(t, rec, &res)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/resources/"+res.ID.String()+"/lock", "alice",
		LockResourceRequest{TimeoutSec: 60})
	if rec.Code != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/resources/"+res.ID.String()+"/lock", "bob",
		LockResourceRequest{TimeoutSec: 60})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for contested lock, got %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/resources/"+res.ID.String()+"/unlock", "bob", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for foreign unlock, got %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/resources/"+res.ID.String()+"/unlock", "alice", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestSearchResources_TimeWindow(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/resources", "alice", RegisterResourceRequest{
		Name:        "report",
		Type:        "document",
		Content:     []byte("data"),
		AccessLevel: "public",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	day := 24 * time.Hour
	from := time.Now().Add(-day).UTC().Format(time.RFC3339)
	to := time.Now().Add(day).UTC().Format(time.RFC3339)

	rec = doJSON(t, mux, http.MethodGet,
		"/api/v1/resources?from="+url.QueryEscape(from)+"&to="+url.QueryEscape(to), "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var found []ResourceResponse
	decodeData(t, rec, &found)
	if len(found) != 1 {
		t.Errorf("expected 1 resource inside window, got %d", len(found))
	}

	// Окно целиком в будущем — resource не попадает
	futureFrom := time.Now().Add(day).UTC().Format(time.RFC3339)
	rec = doJSON(t, mux, http.MethodGet,
		"/api/v1/resources?from="+url.QueryEscape(futureFrom), "alice", nil)
	decodeData(t, rec, &found)
	if len(found) != 0 {
		t.Errorf("expected no resources updated in the future, got %d", len(found))
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/resources?from=yesterday", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed from, got %d", rec.Code)
	}
}

func TestCapabilityRegisterAndInvoke(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/capabilities", "", RegisterCapabilityRequest{
		ID:                "echo",
		Category:          "utility",
		Runner:            "echo",
		AuthorizedHolders: []string{"alice"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	// Авторизованный вызов
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/capabilities/echo/invoke", "alice",
		InvokeCapabilityRequest{Input: map[string]any{"k": "v"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("invoke: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var result capability.InvocationResult
	decodeData(t, rec, &result)
	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}

	// Неавторизованный вызов — структурный отказ
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/capabilities/echo/invoke", "bob",
		InvokeCapabilityRequest{})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	// Несуществующая capability
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/capabilities/ghost/invoke", "alice",
		InvokeCapabilityRequest{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestScheduleCreate(t *testing.T) {
	mux := newTestMux(t)

	tpl := publishTestTemplate(t, mux, PublishTemplateRequest{
		Name:  "nightly",
		Steps: []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/templates/%s/schedules", tpl.ID), "",
		CreateScheduleRequest{Name: "daily", CronExpr: "0 9 * * *", Enabled: true},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var sched domain.Schedule
	decodeData(t, rec, &sched)
	if sched.NextDueAt == nil {
		t.Error("next due should be computed on create")
	}
	if sched.Timezone != "UTC" {
		t.Errorf("expected default UTC timezone, got %s", sched.Timezone)
	}

	// Невалидное cron-выражение
	rec = doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/templates/%s/schedules", tpl.ID), "",
		CreateScheduleRequest{Name: "bad", CronExpr: "nope", Enabled: true},
	)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid cron, got %d", rec.Code)
	}

	// Ни cron, ни interval
	rec = doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/templates/%s/schedules", tpl.ID), "",
		CreateScheduleRequest{Name: "neither", Enabled: true},
	)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for schedule without trigger, got %d", rec.Code)
	}
}
