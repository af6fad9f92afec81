package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowTemplate — определение рабочего процесса.
//
// Template — это "рецепт": упорядоченный список шагов плюс схема входа.
// Опубликованный template неизменяем; новая версия — это новый template
// с новым ID (поле Lineage связывает версии между собой).
type WorkflowTemplate struct {
	// ID — уникальный идентификатор template.
	ID uuid.UUID `json:"id" yaml:"id,omitempty"`

	// Name — человекочитаемое имя (например, "customer-onboarding").
	Name string `json:"name" yaml:"name"`

	// Lineage — имя линейки версий. Templates с одинаковым Lineage —
	// версии одного процесса. По умолчанию равно Name.
	Lineage string `json:"lineage,omitempty" yaml:"lineage,omitempty"`

	// Version — номер версии внутри линейки (1, 2, 3, ...).
	Version int `json:"version" yaml:"version,omitempty"`

	// InputSchema — схема входных данных task.
	InputSchema *Schema `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`

	// Steps — упорядоченный список шагов. Выполняются строго по Ordinal.
	Steps []Step `json:"steps" yaml:"steps"`

	// Active — флаг активности. По неактивным templates нельзя создавать tasks.
	Active bool `json:"active" yaml:"-"`

	// CreatedAt — время публикации.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Step — один шаг внутри template.
//
// Шаг привязан ровно к одной capability. Ветвлений и условных
// пропусков нет: шаги выполняются последовательно по Ordinal.
type Step struct {
	// Ordinal — порядковый номер шага (с 1), уникален внутри template.
	Ordinal int `json:"ordinal" yaml:"ordinal,omitempty"`

	// Capability — идентификатор требуемой capability.
	Capability string `json:"capability" yaml:"capability"`

	// Description — описание назначения шага.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// InputSchema — схема эффективного входа шага
	// (подмножество входа task плюс outputs предыдущих шагов).
	InputSchema *Schema `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

// StepByOrdinal возвращает шаг по порядковому номеру.
func (t *WorkflowTemplate) StepByOrdinal(ordinal int) (*Step, bool) {
	for i := range t.Steps {
		if t.Steps[i].Ordinal == ordinal {
			return &t.Steps[i], true
		}
	}
	return nil, false
}

// TotalSteps возвращает количество шагов.
func (t *WorkflowTemplate) TotalSteps() int {
	return len(t.Steps)
}
