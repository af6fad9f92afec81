package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StepView — шаг template из API.
type StepView struct {
	Ordinal     int    `json:"ordinal"`
	Capability  string `json:"capability"`
	Description string `json:"description,omitempty"`
}

// TemplateResponse — template из API.
type TemplateResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Lineage   string     `json:"lineage,omitempty"`
	Version   int        `json:"version"`
	Steps     []StepView `json:"steps"`
	Active    bool       `json:"active"`
	CreatedAt string     `json:"created_at"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Input       map[string]any `json:"input,omitempty"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	CurrentStep int            `json:"current_step"`
	Errors      []string       `json:"errors,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   string         `json:"started_at,omitempty"`
	FinishedAt  string         `json:"finished_at,omitempty"`
}

// StepResultView — результат шага из API.
type StepResultView struct {
	Ordinal    int            `json:"ordinal"`
	Capability string         `json:"capability"`
	Output     map[string]any `json:"output,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
}

// TaskStatusResponse — срез состояния task из API.
type TaskStatusResponse struct {
	TaskID      string           `json:"task_id"`
	Status      string           `json:"status"`
	CurrentStep int              `json:"current_step"`
	TotalSteps  int              `json:"total_steps"`
	Percentage  float64          `json:"percentage"`
	StepResults []StepResultView `json:"step_results,omitempty"`
	Errors      []string         `json:"errors,omitempty"`
}

// ResourceResponse — resource из API.
type ResourceResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Version     int      `json:"version"`
	AccessLevel string   `json:"access_level"`
	OwnerID     string   `json:"owner_id"`
	Tags        []string `json:"tags,omitempty"`
	Checksum    string   `json:"checksum"`
	Size        int64    `json:"size"`
	Content     []byte   `json:"content,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// CapabilityResponse — capability descriptor из API.
type CapabilityResponse struct {
	ID                string   `json:"id"`
	Category          string   `json:"category"`
	Runner            string   `json:"runner"`
	AuthorizedHolders []string `json:"authorized_holders,omitempty"`
	Invocations       int64    `json:"invocations"`
	Successes         int64    `json:"successes"`
	Failures          int64    `json:"failures"`
	CreatedAt         string   `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	AutoExecute bool           `json:"auto_execute"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastTaskID  string         `json:"last_task_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// --- Request types ---

// CreateTaskRequest — создание task.
type CreateTaskRequest struct {
	Input    map[string]any `json:"input,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Execute  bool           `json:"execute,omitempty"`
}

// RegisterResourceRequest — регистрация resource.
type RegisterResourceRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Content     []byte   `json:"content"`
	AccessLevel string   `json:"access_level,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ShareResourceRequest — выдача доступа к resource.
type ShareResourceRequest struct {
	GranteeID string `json:"grantee_id"`
	Level     string `json:"level,omitempty"`
}

// LockResourceRequest — захват lock.
type LockResourceRequest struct {
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	AutoExecute bool           `json:"auto_execute,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Priority    string         `json:"priority,omitempty"`
}

// SearchResourcesOpts — параметры поиска resources.
// From/To — границы времени обновления в RFC 3339.
type SearchResourcesOpts struct {
	Query   string
	Type    string
	OwnerID string
	Tags    []string
	From    string
	To      string
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code       string   `json:"code"`
		Message    string   `json:"message"`
		Violations []string `json:"violations,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Dirigent API.
type Client struct {
	baseURL    string
	requester  string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. requester попадает в заголовок
// X-Requester-ID каждого запроса (пустая строка — без заголовка).
func NewClient(baseURL, requester string) *Client {
	return &Client{
		baseURL:   baseURL,
		requester: requester,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Templates ---

// ListTemplates возвращает все templates.
func (c *Client) ListTemplates() ([]TemplateResponse, error) {
	var templates []TemplateResponse
	err := c.list("/api/v1/templates", nil, &templates)
	return templates, err
}

// PublishTemplate публикует template из определения.
func (c *Client) PublishTemplate(definition json.RawMessage) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.post("/api/v1/templates", definition, &tpl)
	return &tpl, err
}

// GetTemplate возвращает template по ID.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.get("/api/v1/templates/"+id, &tpl)
	return &tpl, err
}

// LatestTemplate возвращает последнюю версию линейки.
func (c *Client) LatestTemplate(lineage string) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.get("/api/v1/templates/latest/"+url.PathEscape(lineage), &tpl)
	return &tpl, err
}

// DeactivateTemplate деактивирует template.
func (c *Client) DeactivateTemplate(id string) error {
	return c.post("/api/v1/templates/"+id+"/deactivate", nil, nil)
}

// --- Tasks ---

// ListTasks возвращает tasks, опционально по статусу.
func (c *Client) ListTasks(status string) ([]TaskResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask создаёт task из template.
func (c *Client) CreateTask(templateID string, req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/templates/"+templateID+"/tasks", req, &task)
	return &task, err
}

// GetTaskStatus возвращает состояние task.
func (c *Client) GetTaskStatus(id string) (*TaskStatusResponse, error) {
	var status TaskStatusResponse
	err := c.get("/api/v1/tasks/"+id, &status)
	return &status, err
}

// ExecuteTask запускает выполнение task.
func (c *Client) ExecuteTask(id string) error {
	return c.post("/api/v1/tasks/"+id+"/execute", nil, nil)
}

// CancelTask отменяет task.
func (c *Client) CancelTask(id string) (*TaskStatusResponse, error) {
	var status TaskStatusResponse
	err := c.post("/api/v1/tasks/"+id+"/cancel", nil, &status)
	return &status, err
}

// TaskStats возвращает агрегированную статистику по tasks.
func (c *Client) TaskStats() (map[string]any, error) {
	var stats map[string]any
	err := c.get("/api/v1/tasks/stats", &stats)
	return stats, err
}

// --- Resources ---

// SearchResources возвращает resources по запросу и фильтрам.
func (c *Client) SearchResources(opts SearchResourcesOpts) ([]ResourceResponse, error) {
	params := url.Values{}
	if opts.Query != "" {
		params.Set("q", opts.Query)
	}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.OwnerID != "" {
		params.Set("owner_id", opts.OwnerID)
	}
	for _, tag := range opts.Tags {
		params.Add("tag", tag)
	}
	if opts.From != "" {
		params.Set("from", opts.From)
	}
	if opts.To != "" {
		params.Set("to", opts.To)
	}

	var resources []ResourceResponse
	err := c.list("/api/v1/resources", params, &resources)
	return resources, err
}

// RegisterResource регистрирует resource.
func (c *Client) RegisterResource(req RegisterResourceRequest) (*ResourceResponse, error) {
	var res ResourceResponse
	err := c.post("/api/v1/resources", req, &res)
	return &res, err
}

// GetResource возвращает resource с содержимым.
func (c *Client) GetResource(id string) (*ResourceResponse, error) {
	var res ResourceResponse
	err := c.get("/api/v1/resources/"+id, &res)
	return &res, err
}

// UpdateResource обновляет содержимое resource.
func (c *Client) UpdateResource(id string, content []byte) (*ResourceResponse, error) {
	var res ResourceResponse
	err := c.put("/api/v1/resources/"+id, map[string][]byte{"content": content}, &res)
	return &res, err
}

// DeleteResource удаляет resource.
func (c *Client) DeleteResource(id string) error {
	return c.delete("/api/v1/resources/" + id)
}

// ShareResource выдаёт grantee доступ к resource.
func (c *Client) ShareResource(id string, req ShareResourceRequest) (*ResourceResponse, error) {
	var res ResourceResponse
	err := c.post("/api/v1/resources/"+id+"/share", req, &res)
	return &res, err
}

// LockResource захватывает lock на resource.
func (c *Client) LockResource(id string, timeoutSec int) (map[string]any, error) {
	var lock map[string]any
	err := c.post("/api/v1/resources/"+id+"/lock", LockResourceRequest{TimeoutSec: timeoutSec}, &lock)
	return lock, err
}

// UnlockResource снимает lock.
func (c *Client) UnlockResource(id string) error {
	return c.post("/api/v1/resources/"+id+"/unlock", nil, nil)
}

// ResourceStats возвращает агрегированную статистику по resources.
func (c *Client) ResourceStats() (map[string]any, error) {
	var stats map[string]any
	err := c.get("/api/v1/resources/stats", &stats)
	return stats, err
}

// --- Capabilities ---

// ListCapabilities возвращает capabilities, опционально по категории.
func (c *Client) ListCapabilities(category string) ([]CapabilityResponse, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}

	var capabilities []CapabilityResponse
	err := c.list("/api/v1/capabilities", params, &capabilities)
	return capabilities, err
}

// RegisterCapability регистрирует capability из определения.
func (c *Client) RegisterCapability(definition json.RawMessage) (*CapabilityResponse, error) {
	var d CapabilityResponse
	err := c.post("/api/v1/capabilities", definition, &d)
	return &d, err
}

// GetCapability возвращает descriptor по ID.
func (c *Client) GetCapability(id string) (*CapabilityResponse, error) {
	var d CapabilityResponse
	err := c.get("/api/v1/capabilities/"+id, &d)
	return &d, err
}

// CapabilityStats возвращает показатели capability.
func (c *Client) CapabilityStats(id string) (map[string]any, error) {
	var stats map[string]any
	err := c.get("/api/v1/capabilities/"+id+"/stats", &stats)
	return stats, err
}

// --- Schedules ---

// ListSchedules возвращает все schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для template.
func (c *Client) CreateSchedule(templateID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/templates/"+templateID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requester != "" {
		req.Header.Set("X-Requester-ID", c.requester)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if len(er.Error.Violations) > 0 {
		return fmt.Errorf("%s: %s (%v)", er.Error.Code, er.Error.Message, er.Error.Violations)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
