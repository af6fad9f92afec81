package capability

import "errors"

// Ошибки registry.
var (
	// ErrInvalidDescriptor — descriptor без обязательных полей.
	ErrInvalidDescriptor = errors.New("invalid capability descriptor")

	// ErrNotFound — capability не зарегистрирована.
	ErrNotFound = errors.New("capability not found")

	// ErrUnauthorized — requester не входит в набор авторизованных держателей.
	ErrUnauthorized = errors.New("requester not authorized")

	// ErrSchemaViolation — вход не прошёл валидацию против input schema.
	ErrSchemaViolation = errors.New("input schema violation")
)
