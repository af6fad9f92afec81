package schema

import (
	"testing"

	"github.com/shaiso/Dirigent/internal/domain"
)

func TestValidate_EmptySchema(t *testing.T) {
	payload := map[string]any{"anything": 42}

	if res := Validate(payload, nil); !res.Valid {
		t.Error("nil schema should accept any payload")
	}
	if res := Validate(payload, &domain.Schema{}); !res.Valid {
		t.Error("empty schema should accept any payload")
	}
}

func TestValidate_RequiredMissing(t *testing.T) {
	s := &domain.Schema{
		Required: []string{"name", "email"},
	}

	res := Validate(map[string]any{"name": "bob"}, s)

	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(res.Errors), res.Errors)
	}
	if res.Errors[0] != `missing required property "email"` {
		t.Errorf("unexpected error: %s", res.Errors[0])
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{
			{Name: "count", Type: "number"},
			{Name: "active", Type: "boolean"},
			{Name: "meta", Type: "object"},
		},
	}

	res := Validate(map[string]any{
		"count":  "ten",
		"active": true,
		"meta":   []any{1, 2},
	}, s)

	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(res.Errors), res.Errors)
	}
}

func TestValidate_NumberAcceptsIntAndFloat(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{{Name: "n", Type: "number"}},
	}

	for _, v := range []any{1, int64(2), float64(3.5)} {
		if res := Validate(map[string]any{"n": v}, s); !res.Valid {
			t.Errorf("value %v (%T) should match number", v, v)
		}
	}
}

func TestValidate_MissingOptionalPropertySkipped(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{{Name: "note", Type: "string"}},
	}

	if res := Validate(map[string]any{}, s); !res.Valid {
		t.Error("absent optional property should not be checked")
	}
}

func TestValidate_Enum(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{
			{Name: "level", Enum: []any{"low", "high"}},
		},
	}

	if res := Validate(map[string]any{"level": "low"}, s); !res.Valid {
		t.Errorf("expected valid, got %v", res.Errors)
	}
	if res := Validate(map[string]any{"level": "medium"}, s); res.Valid {
		t.Error("value outside enum should be rejected")
	}
}

func TestValidate_EnumNumericEquivalence(t *testing.T) {
	// JSON-декодер даёт float64, схема может объявлять int
	s := &domain.Schema{
		Properties: []domain.Property{
			{Name: "retries", Enum: []any{1, 2, 3}},
		},
	}

	if res := Validate(map[string]any{"retries": float64(2)}, s); !res.Valid {
		t.Errorf("2.0 should match enum value 2, got %v", res.Errors)
	}
}

func TestValidate_EmailFormat(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{
			{Name: "contact", Type: "string", Format: "email"},
		},
	}

	tests := []struct {
		value string
		valid bool
	}{
		{"user@example.com", true},
		{"a@b.co", true},
		{"not-an-email", false},
		{"has space@example.com", false},
		{"missing@tld", false},
		{"@example.com", false},
	}

	for _, tt := range tests {
		res := Validate(map[string]any{"contact": tt.value}, s)
		if res.Valid != tt.valid {
			t.Errorf("email %q: expected valid=%v, got %v (%v)", tt.value, tt.valid, res.Valid, res.Errors)
		}
	}
}

func TestValidate_ErrorOrderDeterministic(t *testing.T) {
	// Required проверяется первым в порядке объявления,
	// затем свойства в порядке объявления
	s := &domain.Schema{
		Required: []string{"first", "second"},
		Properties: []domain.Property{
			{Name: "alpha", Type: "string"},
			{Name: "beta", Type: "number"},
		},
	}
	payload := map[string]any{"alpha": 1, "beta": "x"}

	expected := []string{
		`missing required property "first"`,
		`missing required property "second"`,
		`property "alpha": expected type string, got number`,
		`property "beta": expected type number, got string`,
	}

	for i := 0; i < 10; i++ {
		res := Validate(payload, s)
		if len(res.Errors) != len(expected) {
			t.Fatalf("expected %d errors, got %d: %v", len(expected), len(res.Errors), res.Errors)
		}
		for j, want := range expected {
			if res.Errors[j] != want {
				t.Fatalf("error %d: expected %q, got %q", j, want, res.Errors[j])
			}
		}
	}
}

func TestValidate_UnknownDeclaredTypeIgnored(t *testing.T) {
	s := &domain.Schema{
		Properties: []domain.Property{{Name: "x", Type: "integer"}},
	}

	if res := Validate(map[string]any{"x": "whatever"}, s); !res.Valid {
		t.Error("unknown declared type should not be checked")
	}
}
