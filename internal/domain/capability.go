package domain

import "time"

// CapabilityDescriptor — описание единицы исполняемого поведения.
//
// "Роли" — это данные: descriptor параметризуется схемами и набором
// авторизованных держателей, а не иерархией типов. Новая роль —
// новая запись в registry, а не новый код.
//
// Registry владеет счётчиками descriptor'а; само исполняемое поведение
// предоставляется внешним Runner'ом (пакет invoker).
type CapabilityDescriptor struct {
	// ID — уникальный идентификатор capability (например, "echo",
	// "http.fetch", "report.render").
	ID string `json:"id"`

	// Category — категория для поиска и fallback-резолюции
	// (например, "transport", "transform", "analysis").
	Category string `json:"category"`

	// Runner — тип исполнителя: "echo", "http", "transform", "delay".
	// Неизвестный runner даёт CapabilityFailure с reason "unimplemented".
	Runner string `json:"runner"`

	// Config — конфигурация runner'а (например, базовый URL для http).
	Config map[string]any `json:"config,omitempty"`

	// InputSchema — схема входа вызова. Проверяется до делегирования.
	InputSchema *Schema `json:"input_schema,omitempty"`

	// OutputSchema — схема выхода. Проверяется после делегирования;
	// нарушение фиксируется, но не проваливает вызов.
	OutputSchema *Schema `json:"output_schema,omitempty"`

	// AuthorizedHolders — идентификаторы держателей, которым разрешён
	// вызов. Пустой срез — без ограничений.
	AuthorizedHolders []string `json:"authorized_holders,omitempty"`

	// --- Накопленные счётчики (переживают перерегистрацию) ---

	// Invocations — общее число вызовов.
	Invocations int64 `json:"invocations"`

	// Successes — число успешных вызовов.
	Successes int64 `json:"successes"`

	// Failures — число неуспешных вызовов.
	Failures int64 `json:"failures"`

	// TotalLatencyMs — суммарная длительность всех вызовов.
	TotalLatencyMs int64 `json:"total_latency_ms"`

	// LastInvokedAt — время последнего вызова.
	LastInvokedAt *time.Time `json:"last_invoked_at,omitempty"`

	// CreatedAt — время первой регистрации.
	CreatedAt time.Time `json:"created_at"`
}

// IsAuthorized возвращает true, если requester может вызывать capability.
func (d *CapabilityDescriptor) IsAuthorized(requesterID string) bool {
	if len(d.AuthorizedHolders) == 0 {
		return true
	}
	for _, h := range d.AuthorizedHolders {
		if h == requesterID {
			return true
		}
	}
	return false
}

// SuccessRate возвращает долю успешных вызовов (0..1).
func (d *CapabilityDescriptor) SuccessRate() float64 {
	if d.Invocations == 0 {
		return 0
	}
	return float64(d.Successes) / float64(d.Invocations)
}

// AverageLatencyMs возвращает среднюю длительность вызова.
func (d *CapabilityDescriptor) AverageLatencyMs() float64 {
	if d.Invocations == 0 {
		return 0
	}
	return float64(d.TotalLatencyMs) / float64(d.Invocations)
}

// RecordInvocation обновляет счётчики после вызова.
func (d *CapabilityDescriptor) RecordInvocation(success bool, latencyMs int64, at time.Time) {
	d.Invocations++
	if success {
		d.Successes++
	} else {
		d.Failures++
	}
	d.TotalLatencyMs += latencyMs
	d.LastInvokedAt = &at
}
