// Package catalog — каталог именованных версионируемых workflow templates.
//
// Опубликованный template неизменяем: новая версия процесса — это новый
// template с новым ID внутри той же линейки (Lineage). Каталог только
// валидирует и хранит определения; исполняет их engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
)

// Ошибки каталога.
var (
	// ErrInvalidTemplate — определение template не прошло валидацию.
	ErrInvalidTemplate = errors.New("invalid workflow template")

	// ErrNotFound — template не найден.
	ErrNotFound = errors.New("template not found")
)

// Catalog — каталог templates.
type Catalog struct {
	store  store.TemplateStore
	logger *slog.Logger
}

// New создаёт новый Catalog.
func New(st store.TemplateStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: st, logger: logger}
}

// Publish валидирует определение и публикует его как новый template.
//
// ID и Version назначаются каталогом: версия — следующая в линейке
// (Lineage, по умолчанию Name). Переданное определение не мутируется.
func (c *Catalog) Publish(ctx context.Context, def *domain.WorkflowTemplate) (*domain.WorkflowTemplate, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	lineage := def.Lineage
	if lineage == "" {
		lineage = def.Name
	}

	version, err := c.nextVersion(ctx, lineage)
	if err != nil {
		return nil, err
	}

	tpl := *def
	tpl.ID = uuid.New()
	tpl.Lineage = lineage
	tpl.Version = version
	tpl.Active = true
	tpl.CreatedAt = time.Now()

	if err := c.store.Put(ctx, &tpl); err != nil {
		return nil, fmt.Errorf("put template: %w", err)
	}

	c.logger.Info("template published",
		"template_id", tpl.ID,
		"name", tpl.Name,
		"version", tpl.Version,
		"steps", len(tpl.Steps),
	)
	return &tpl, nil
}

// Get возвращает template по ID.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	tpl, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

// List возвращает все templates, отсортированные по линейке и версии.
func (c *Catalog) List(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Lineage != all[j].Lineage {
			return all[i].Lineage < all[j].Lineage
		}
		return all[i].Version < all[j].Version
	})
	return all, nil
}

// Latest возвращает последнюю активную версию линейки.
func (c *Catalog) Latest(ctx context.Context, lineage string) (*domain.WorkflowTemplate, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var best *domain.WorkflowTemplate
	for i := range all {
		tpl := &all[i]
		if tpl.Lineage != lineage || !tpl.Active {
			continue
		}
		if best == nil || tpl.Version > best.Version {
			best = tpl
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: lineage %q", ErrNotFound, lineage)
	}
	cp := *best
	return &cp, nil
}

// Deactivate помечает template неактивным: по нему больше нельзя
// создавать tasks. Содержимое template не меняется.
func (c *Catalog) Deactivate(ctx context.Context, id uuid.UUID) error {
	tpl, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !tpl.Active {
		return nil
	}
	tpl.Active = false
	if err := c.store.Put(ctx, tpl); err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	return nil
}

// nextVersion возвращает следующий номер версии в линейке.
func (c *Catalog) nextVersion(ctx context.Context, lineage string) (int, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}
	max := 0
	for i := range all {
		if all[i].Lineage == lineage && all[i].Version > max {
			max = all[i].Version
		}
	}
	return max + 1, nil
}

// validateDefinition проверяет структурную корректность определения.
func validateDefinition(def *domain.WorkflowTemplate) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidTemplate)
	}

	seen := make(map[int]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]

		if step.Ordinal < 1 || step.Ordinal > len(def.Steps) {
			return fmt.Errorf("%w: step ordinal %d out of range 1..%d",
				ErrInvalidTemplate, step.Ordinal, len(def.Steps))
		}
		if seen[step.Ordinal] {
			return fmt.Errorf("%w: duplicate step ordinal %d", ErrInvalidTemplate, step.Ordinal)
		}
		seen[step.Ordinal] = true

		if step.Capability == "" {
			return fmt.Errorf("%w: step %d has no capability", ErrInvalidTemplate, step.Ordinal)
		}
	}
	return nil
}
