package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type TaskStatus string

const (
	// TaskStatusPending — task создан и провалидирован, но ещё не выполняется.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — task в процессе выполнения шагов.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — все шаги выполнены успешно.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — один из шагов завершился с ошибкой.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusCancelled — task отменён пользователем.
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (task завершён).
// Из терминального статуса переходов нет.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Priority — приоритет task.
//
// Engine не использует приоритет при планировании (шаги и так выполняются
// строго последовательно), но хранит его для статистики и внешних очередей.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority парсит строку в Priority. Пустая строка — NORMAL.
func ParsePriority(s string) Priority {
	switch s {
	case "LOW":
		return PriorityLow
	case "HIGH":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// AccessLevel — уровень доступа к resource.
type AccessLevel string

const (
	// AccessPublic — resource доступен на чтение всем.
	AccessPublic AccessLevel = "public"

	// AccessPrivate — resource доступен только владельцу и держателям grants.
	AccessPrivate AccessLevel = "private"
)

// GrantLevel — уровень доступа, выданный через share.
type GrantLevel string

const (
	// GrantRead — grantee может читать resource.
	GrantRead GrantLevel = "read"

	// GrantWrite — grantee может читать resource.
	// Обновление остаётся за владельцем; write-grant зарезервирован
	// для будущей передачи права обновления.
	GrantWrite GrantLevel = "write"
)
