// Package invoker — граница внешнего исполнения capabilities.
//
// Ядро оркестрации не знает, как именно выполняется capability
// (HTTP-вызов, LLM, внешний runtime): оно видит только контракт Runner.
// Пакет предоставляет встроенные runners (echo, http, transform, delay);
// host-приложение может регистрировать свои.
package invoker

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки исполнения.
var (
	// ErrUnimplemented — для runner'а данного вида нет реализации.
	// Явная ошибка вместо success-образной заглушки: вызывающая сторона
	// не может молча принять stub за настоящий результат.
	ErrUnimplemented = errors.New("capability unimplemented")

	// ErrHTTPRequest — HTTP-запрос завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")
)

// Runner — контракт внешнего исполнения.
//
// input содержит эффективный вход вызова, config — конфигурацию
// из capability descriptor'а. Инфраструктурные ошибки возвращаются
// через error; логические — через Output.Error.
type Runner interface {
	Run(ctx context.Context, input map[string]any, config map[string]any) (*Output, error)
}

// Output — результат исполнения capability.
type Output struct {
	// Data — выходные данные.
	Data map[string]any

	// Error — сообщение о логической ошибке выполнения.
	// Пустая строка — успех.
	Error string
}

// Registry — реестр runners по виду.
type Registry struct {
	runners map[string]Runner
}

// NewRegistry создаёт реестр со встроенными runners.
//
// Регистрирует: echo, http, transform, delay.
func NewRegistry() *Registry {
	r := &Registry{runners: make(map[string]Runner)}
	r.Register("echo", &EchoRunner{})
	r.Register("http", &HTTPRunner{})
	r.Register("transform", &TransformRunner{})
	r.Register("delay", &DelayRunner{})
	return r
}

// Register добавляет runner для вида.
func (r *Registry) Register(kind string, runner Runner) {
	r.runners[kind] = runner
}

// Get возвращает runner для вида.
func (r *Registry) Get(kind string) (Runner, error) {
	runner, ok := r.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no runner for kind %q", ErrUnimplemented, kind)
	}
	return runner, nil
}

// Kinds возвращает зарегистрированные виды runners.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.runners))
	for k := range r.runners {
		kinds = append(kinds, k)
	}
	return kinds
}
