// Package schema валидирует payload против декларативной схемы.
//
// Правила применяются независимо и все нарушения собираются в один
// список (без short-circuit):
//   - обязательные свойства (schema.Required)
//   - примитивные типы (string, number, boolean, object, array)
//   - принадлежность enum
//   - формат "email"
//
// Валидация — чистая функция: одинаковые входы всегда дают одинаковый
// список ошибок. Порядок ошибок: сначала required-проверки в порядке
// объявления, затем проверки свойств в порядке объявления.
package schema
