// Package engine — ядро оркестрации: state machine выполнения tasks.
//
// Engine отвечает за:
//   - Создание tasks из templates с валидацией входа
//   - Выполнение шагов строго в порядке ordinal
//   - Резолюцию capability для каждого шага (с явной fallback-политикой)
//   - Запись StepResults и продвижение статуса
//   - Финализацию task (COMPLETED/FAILED/CANCELLED)
//
// Tasks независимы и выполняются конкурентно (ограничение — semaphore);
// внутри одного task шаги строго последовательны: шаг k+1 не начинается,
// пока результат шага k не записан.
//
// Ошибки исполнения capability не покидают engine: они фиксируются
// в состоянии task (FAILED), а вызывающая сторона узнаёт о них через
// Status. Структурные ошибки (валидация, not found, invalid state)
// возвращаются синхронно и не оставляют частичного состояния.
package engine
