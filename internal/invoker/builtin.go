package invoker

import (
	"context"
	"time"
)

// EchoRunner — runner вида "echo".
//
// Возвращает input без изменений. Базовый runner для smoke-проверок
// шаблонов и сквозных тестов.
type EchoRunner struct{}

// Run возвращает input как данные.
func (r *EchoRunner) Run(_ context.Context, input, _ map[string]any) (*Output, error) {
	data := input
	if data == nil {
		data = make(map[string]any)
	}
	return &Output{Data: data}, nil
}

// TransformRunner — runner вида "transform".
//
// Накладывает input поверх config и возвращает результат —
// pass-through для переноса и переименования данных между шагами.
type TransformRunner struct{}

// Run возвращает слияние config и input.
func (r *TransformRunner) Run(_ context.Context, input, config map[string]any) (*Output, error) {
	return &Output{Data: merged(config, input)}, nil
}

// DelayRunner — runner вида "delay".
//
// Ожидает указанное количество секунд. Поддерживает отмену через context.
//
// Параметры:
//   - duration_sec (number): длительность задержки в секундах (default: 1)
type DelayRunner struct{}

// Run выполняет задержку.
func (r *DelayRunner) Run(ctx context.Context, input, config map[string]any) (*Output, error) {
	params := merged(config, input)

	durationSec := 1.0
	if val, ok := params["duration_sec"]; ok {
		switch v := val.(type) {
		case float64:
			durationSec = v
		case int:
			durationSec = float64(v)
		}
	}
	if durationSec <= 0 {
		durationSec = 1
	}

	select {
	case <-time.After(time.Duration(durationSec * float64(time.Second))):
		return &Output{Data: map[string]any{"delayed_sec": durationSec}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
