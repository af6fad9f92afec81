// Package repo предоставляет PostgreSQL-реализации хранилищ
// (контракты — в пакете store).
//
// Все репозитории работают через pgxpool.Pool и транслируют
// pgx.ErrNoRows в store.ErrNotFound. Put у всех репозиториев — upsert:
// запись заменяется целиком, частичная запись невозможна.
package repo
