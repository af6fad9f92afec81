// Package capability — реестр единиц исполняемого поведения.
//
// Registry сопоставляет идентификатор capability её runner'у, проверяет
// авторизацию и схему входа, делегирует исполнение внешней границе
// (пакет invoker) с жёстким таймаутом и всегда записывает метрики —
// независимо от исхода делегирования.
//
// Ответственность registry заканчивается на границе контракта:
// схема на входе проверяется, схема на выходе — фиксируется событием
// при нарушении, но вызов не проваливает.
package capability
