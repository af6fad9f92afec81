package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// Template DTOs

// PublishTemplateRequest — запрос на публикацию template.
type PublishTemplateRequest struct {
	Name        string         `json:"name"`
	Lineage     string         `json:"lineage,omitempty"`
	InputSchema *domain.Schema `json:"input_schema,omitempty"`
	Steps       []domain.Step  `json:"steps"`
}

// Task DTOs

// CreateTaskRequest — запрос на создание task.
type CreateTaskRequest struct {
	Input    map[string]any `json:"input,omitempty"`
	Priority string         `json:"priority,omitempty"`

	// Execute — запустить task сразу после создания (асинхронно,
	// через очередь).
	Execute bool `json:"execute,omitempty"`
}

// Resource DTOs

// RegisterResourceRequest — запрос на регистрацию resource.
// Content передаётся в base64 (стандартная JSON-кодировка []byte).
type RegisterResourceRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Content     []byte   `json:"content"`
	AccessLevel string   `json:"access_level,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateResourceRequest — запрос на обновление содержимого resource.
type UpdateResourceRequest struct {
	Content []byte `json:"content"`
}

// ShareResourceRequest — запрос на выдачу доступа к resource.
type ShareResourceRequest struct {
	GranteeID string `json:"grantee_id"`
	Level     string `json:"level,omitempty"`
}

// LockResourceRequest — запрос на захват lock.
type LockResourceRequest struct {
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// ResourceResponse — ответ с resource (без содержимого).
type ResourceResponse struct {
	ID          uuid.UUID                    `json:"id"`
	Name        string                       `json:"name"`
	Type        string                       `json:"type"`
	Version     int                          `json:"version"`
	AccessLevel string                       `json:"access_level"`
	OwnerID     string                       `json:"owner_id"`
	Tags        []string                     `json:"tags,omitempty"`
	Grants      map[string]domain.GrantLevel `json:"grants,omitempty"`
	Checksum    string                       `json:"checksum"`
	Size        int64                        `json:"size"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// ResourceFromDomain конвертирует domain.Resource в ResourceResponse.
func ResourceFromDomain(r *domain.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Version:     r.Version,
		AccessLevel: string(r.AccessLevel),
		OwnerID:     r.OwnerID,
		Tags:        r.Tags,
		Grants:      r.Grants,
		Checksum:    r.Checksum,
		Size:        r.Size,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ResourceContentResponse — ответ с resource и содержимым.
type ResourceContentResponse struct {
	ResourceResponse
	Content []byte `json:"content"`
}

// Capability DTOs

// RegisterCapabilityRequest — запрос на регистрацию capability.
type RegisterCapabilityRequest struct {
	ID                string         `json:"id"`
	Category          string         `json:"category,omitempty"`
	Runner            string         `json:"runner"`
	Config            map[string]any `json:"config,omitempty"`
	InputSchema       *domain.Schema `json:"input_schema,omitempty"`
	OutputSchema      *domain.Schema `json:"output_schema,omitempty"`
	AuthorizedHolders []string       `json:"authorized_holders,omitempty"`
}

// InvokeCapabilityRequest — запрос на прямой вызов capability.
type InvokeCapabilityRequest struct {
	Input      map[string]any `json:"input,omitempty"`
	TimeoutSec int            `json:"timeout_sec,omitempty"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
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

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	AutoExecute *bool           `json:"auto_execute,omitempty"`
	Inputs      *map[string]any `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}
