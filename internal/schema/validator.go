package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shaiso/Dirigent/internal/domain"
)

// Result — результат валидации payload.
type Result struct {
	// Valid — true, если нарушений нет.
	Valid bool `json:"valid"`

	// Errors — список нарушений. Пустой при Valid=true.
	Errors []string `json:"errors,omitempty"`
}

// ErrorList возвращает все нарушения одной строкой.
func (r *Result) ErrorList() string {
	return strings.Join(r.Errors, "; ")
}

// Консервативный шаблон email: local-part @ domain, без пробелов.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate проверяет payload против схемы.
//
// Nil или пустая схема не накладывает ограничений.
func Validate(payload map[string]any, s *domain.Schema) *Result {
	if s.IsEmpty() {
		return &Result{Valid: true}
	}

	var errs []string

	// 1. Обязательные свойства — в порядке объявления Required.
	for _, name := range s.Required {
		if _, ok := payload[name]; !ok {
			errs = append(errs, fmt.Sprintf("missing required property %q", name))
		}
	}

	// 2. Проверки присутствующих свойств — в порядке объявления Properties.
	for i := range s.Properties {
		prop := &s.Properties[i]

		value, ok := payload[prop.Name]
		if !ok {
			continue
		}

		if prop.Type != "" && !matchesType(value, prop.Type) {
			errs = append(errs, fmt.Sprintf("property %q: expected type %s, got %s",
				prop.Name, prop.Type, runtimeType(value)))
		}

		if len(prop.Enum) > 0 && !inEnum(value, prop.Enum) {
			errs = append(errs, fmt.Sprintf("property %q: value not in allowed set %s",
				prop.Name, formatEnum(prop.Enum)))
		}

		if prop.Format == "email" && !isEmail(value) {
			errs = append(errs, fmt.Sprintf("property %q: not a valid email address", prop.Name))
		}
	}

	return &Result{Valid: len(errs) == 0, Errors: errs}
}

// matchesType проверяет runtime-тип значения против объявленного.
func matchesType(value any, declared string) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		// Неизвестный объявленный тип не проверяется.
		return true
	}
}

// runtimeType возвращает имя типа значения в терминах схемы.
func runtimeType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64, float32, int, int32, int64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// inEnum проверяет принадлежность значения enum.
// Числа сравниваются по значению: 2 и 2.0 эквивалентны
// (JSON-декодер даёт float64, схема может объявлять int).
func inEnum(value any, enum []any) bool {
	for _, allowed := range enum {
		if equalValues(value, allowed) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, v := range enum {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func isEmail(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return emailPattern.MatchString(s)
}
