package resource

import "errors"

// Ошибки registry.
var (
	// ErrInvalidResource — не заполнены обязательные поля (name/type/content).
	ErrInvalidResource = errors.New("invalid resource")

	// ErrNotFound — resource не найден.
	ErrNotFound = errors.New("resource not found")

	// ErrAccessDenied — у requester нет прав на операцию.
	ErrAccessDenied = errors.New("access denied")

	// ErrAlreadyLocked — живой lock удерживается другим holder.
	ErrAlreadyLocked = errors.New("resource already locked")

	// ErrNotLockHolder — живой lock принадлежит другому holder.
	ErrNotLockHolder = errors.New("not the lock holder")
)
