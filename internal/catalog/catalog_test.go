package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
)

func newTestCatalog() *Catalog {
	return New(store.NewMemoryTemplateStore(), nil)
}

func validDefinition(name string) *domain.WorkflowTemplate {
	return &domain.WorkflowTemplate{
		Name: name,
		Steps: []domain.Step{
			{Ordinal: 1, Capability: "echo"},
			{Ordinal: 2, Capability: "echo"},
		},
	}
}

func TestPublish(t *testing.T) {
	c := newTestCatalog()

	tpl, err := c.Publish(context.Background(), validDefinition("onboarding"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if tpl.ID == uuid.Nil {
		t.Error("ID should be assigned")
	}
	if tpl.Version != 1 {
		t.Errorf("expected version 1, got %d", tpl.Version)
	}
	if tpl.Lineage != "onboarding" {
		t.Errorf("lineage should default to name, got %s", tpl.Lineage)
	}
	if !tpl.Active {
		t.Error("published template should be active")
	}
}

func TestPublish_Validation(t *testing.T) {
	c := newTestCatalog()
	ctx := context.Background()

	tests := []struct {
		name string
		def  *domain.WorkflowTemplate
	}{
		{"no name", &domain.WorkflowTemplate{
			Steps: []domain.Step{{Ordinal: 1, Capability: "echo"}},
		}},
		{"no steps", &domain.WorkflowTemplate{Name: "empty"}},
		{"ordinal out of range", &domain.WorkflowTemplate{
			Name:  "bad",
			Steps: []domain.Step{{Ordinal: 5, Capability: "echo"}},
		}},
		{"duplicate ordinal", &domain.WorkflowTemplate{
			Name: "dup",
			Steps: []domain.Step{
				{Ordinal: 1, Capability: "echo"},
				{Ordinal: 1, Capability: "echo"},
			},
		}},
		{"missing capability", &domain.WorkflowTemplate{
			Name:  "nocap",
			Steps: []domain.Step{{Ordinal: 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Publish(ctx, tt.def); !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("expected ErrInvalidTemplate, got %v", err)
			}
		})
	}
}

func TestPublish_LineageVersioning(t *testing.T) {
	c := newTestCatalog()
	ctx := context.Background()

	v1, err := c.Publish(ctx, validDefinition("onboarding"))
	if err != nil {
		t.Fatalf("publish v1: %v", err)
	}
	v2, err := c.Publish(ctx, validDefinition("onboarding"))
	if err != nil {
		t.Fatalf("publish v2: %v", err)
	}

	if v2.Version != 2 {
		t.Errorf("expected version 2, got %d", v2.Version)
	}
	if v1.ID == v2.ID {
		t.Error("each version is a distinct template")
	}

	// Другая линейка начинает с версии 1
	other, err := c.Publish(ctx, validDefinition("billing"))
	if err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if other.Version != 1 {
		t.Errorf("expected version 1 for new lineage, got %d", other.Version)
	}
}

func TestLatest(t *testing.T) {
	c := newTestCatalog()
	ctx := context.Background()

	if _, err := c.Publish(ctx, validDefinition("onboarding")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	v2, err := c.Publish(ctx, validDefinition("onboarding"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	latest, err := c.Latest(ctx, "onboarding")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != v2.ID {
		t.Errorf("expected latest %s, got %s", v2.ID, latest.ID)
	}

	// Деактивация последней версии откатывает Latest на предыдущую
	if err := c.Deactivate(ctx, v2.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	latest, err = c.Latest(ctx, "onboarding")
	if err != nil {
		t.Fatalf("latest after deactivate: %v", err)
	}
	if latest.Version != 1 {
		t.Errorf("expected version 1, got %d", latest.Version)
	}

	if _, err := c.Latest(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivate_Idempotent(t *testing.T) {
	c := newTestCatalog()
	ctx := context.Background()

	tpl, err := c.Publish(ctx, validDefinition("onboarding"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := c.Deactivate(ctx, tpl.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := c.Deactivate(ctx, tpl.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	got, err := c.Get(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Error("template should stay inactive")
	}
}

func TestGet_NotFound(t *testing.T) {
	c := newTestCatalog()

	if _, err := c.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_Sorted(t *testing.T) {
	c := newTestCatalog()
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "alpha"} {
		if _, err := c.Publish(ctx, validDefinition(name)); err != nil {
			t.Fatalf("publish %s: %v", name, err)
		}
	}

	all, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(all))
	}
	if all[0].Lineage != "alpha" || all[0].Version != 1 {
		t.Errorf("unexpected first entry: %s v%d", all[0].Lineage, all[0].Version)
	}
	if all[1].Lineage != "alpha" || all[1].Version != 2 {
		t.Errorf("unexpected second entry: %s v%d", all[1].Lineage, all[1].Version)
	}
	if all[2].Lineage != "zeta" {
		t.Errorf("unexpected third entry: %s", all[2].Lineage)
	}
}

func TestParseDefinition_JSON(t *testing.T) {
	data := []byte(`{
		"name": "onboarding",
		"steps": [
			{"ordinal": 2, "capability": "notify"},
			{"ordinal": 1, "capability": "validate"}
		]
	}`)

	def, err := ParseDefinition(data, "flow.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "onboarding" {
		t.Errorf("unexpected name %s", def.Name)
	}
	// Шаги отсортированы по ordinal
	if def.Steps[0].Capability != "validate" || def.Steps[1].Capability != "notify" {
		t.Errorf("steps should be sorted by ordinal: %+v", def.Steps)
	}
}

func TestParseDefinition_YAML(t *testing.T) {
	data := []byte(`
name: onboarding
input_schema:
  required: [customer_id]
steps:
  - capability: validate
  - capability: notify
`)

	def, err := ParseDefinition(data, "flow.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(def.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(def.Steps))
	}
	// Ordinals назначены по порядку следования
	if def.Steps[0].Ordinal != 1 || def.Steps[1].Ordinal != 2 {
		t.Errorf("ordinals should be assigned in order: %+v", def.Steps)
	}
	if def.InputSchema == nil || len(def.InputSchema.Required) != 1 {
		t.Error("input schema should be parsed")
	}
}

func TestParseDefinition_Invalid(t *testing.T) {
	if _, err := ParseDefinition([]byte("{not json"), "flow.json"); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
	if _, err := ParseDefinition([]byte("\t- bad"), "flow.yaml"); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate, got %v", err)
	}
}
