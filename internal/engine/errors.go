package engine

import (
	"errors"
	"strings"
)

// Ошибки engine.
var (
	// ErrValidation — вход не прошёл валидацию против схемы template.
	ErrValidation = errors.New("input validation failed")

	// ErrTemplateNotFound — template не найден.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateInactive — template деактивирован.
	ErrTemplateInactive = errors.New("template is not active")

	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidState — операция несовместима с текущим статусом task.
	ErrInvalidState = errors.New("invalid task state")

	// ErrTaskAlreadyActive — task уже выполняется этим engine.
	ErrTaskAlreadyActive = errors.New("task already being executed")

	// ErrEngineStopped — engine остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)

// ValidationError — агрегат нарушений схемы входа.
//
// Возвращается из CreateTask до создания task: ни одно нарушение
// не приводит к частично применённому состоянию.
type ValidationError struct {
	// Violations — список нарушений в детерминированном порядке.
	Violations []string
}

func (e *ValidationError) Error() string {
	return "input validation failed: " + strings.Join(e.Violations, "; ")
}

// Unwrap позволяет errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
