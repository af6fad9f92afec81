// Package resource — версионируемый реестр разделяемых артефактов.
//
// Registry — единственный арбитр мутаций разделяемых артефактов:
//   - контроль доступа (public/private, grants через share)
//   - строго монотонное версионирование с архивными снимками
//   - advisory эксклюзивные locks с ленивым истечением
//   - поиск и статистика
//
// Инварианты:
//   - на resource существует не более одного живого lock
//   - последовательность версий растёт ровно на 1 без пропусков,
//     даже при конкурентных update (per-resource мьютекс)
package resource
