// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (catalog, engine, registries, publisher)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - template_handler.go   — обработчики для /templates
//   - task_handler.go       — обработчики для /tasks
//   - resource_handler.go   — обработчики для /resources
//   - capability_handler.go — обработчики для /capabilities
//   - schedule_handler.go   — обработчики для /schedules
//
// API предоставляет REST endpoints для управления templates, tasks,
// resources, capabilities и schedules. Идентификатор вызывающей стороны
// передаётся в заголовке X-Requester-ID (по умолчанию "api").
package api
