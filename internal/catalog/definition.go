package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Dirigent/internal/domain"
	"gopkg.in/yaml.v3"
)

// ParseDefinition парсит определение template из JSON или YAML.
//
// Формат выбирается по расширению файла: ".yaml"/".yml" — YAML,
// иначе JSON. Шаги сортируются по ordinal; если ordinals не заданы
// (все нули), они назначаются по порядку следования в файле.
func ParseDefinition(data []byte, filename string) (*domain.WorkflowTemplate, error) {
	var def domain.WorkflowTemplate

	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidTemplate, err)
		}
	} else {
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidTemplate, err)
		}
	}

	normalizeOrdinals(def.Steps)
	return &def, nil
}

// normalizeOrdinals назначает ordinals по порядку следования,
// если они не заданы, и сортирует шаги по ordinal.
func normalizeOrdinals(steps []domain.Step) {
	allZero := true
	for i := range steps {
		if steps[i].Ordinal != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		for i := range steps {
			steps[i].Ordinal = i + 1
		}
		return
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Ordinal < steps[j].Ordinal })
}
