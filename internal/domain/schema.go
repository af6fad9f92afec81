package domain

// Schema — декларативная схема для валидации payload.
//
// Схема — это данные, а не код: она сериализуется вместе с template
// или capability descriptor и интерпретируется пакетом schema.
//
// Properties хранятся срезом, а не map, чтобы сохранить порядок
// объявления — порядок ошибок валидации детерминирован.
type Schema struct {
	// Required — имена свойств, обязательных в payload.
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`

	// Properties — описания свойств в порядке объявления.
	Properties []Property `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Property — описание одного свойства payload.
type Property struct {
	// Name — имя свойства в payload.
	Name string `json:"name" yaml:"name"`

	// Type — примитивный тип: "string", "number", "boolean", "object", "array".
	// Пустой тип — свойство не проверяется на тип.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Enum — допустимые значения. Пустой срез — без ограничений.
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Format — дополнительное ограничение формата.
	// Поддерживается: "email".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Property возвращает описание свойства по имени.
func (s *Schema) Property(name string) (*Property, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i], true
		}
	}
	return nil, false
}

// IsEmpty возвращает true, если схема не накладывает ограничений.
func (s *Schema) IsEmpty() bool {
	return s == nil || (len(s.Required) == 0 && len(s.Properties) == 0)
}
