package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
)

// TemplateRepo — репозиторий workflow templates. Реализует store.TemplateStore.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// Get возвращает template по ID.
func (r *TemplateRepo) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT id, name, lineage, version, input_schema, steps, active, created_at
		FROM templates
		WHERE id = $1
	`
	return scanTemplate(r.pool.QueryRow(ctx, query, id))
}

// Put сохраняет template целиком (upsert).
func (r *TemplateRepo) Put(ctx context.Context, tpl *domain.WorkflowTemplate) error {
	schemaJSON, err := json.Marshal(tpl.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input_schema: %w", err)
	}
	stepsJSON, err := json.Marshal(tpl.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO templates (id, name, lineage, version, input_schema, steps, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET active = $7
	`
	_, err = r.pool.Exec(ctx, query,
		tpl.ID,
		tpl.Name,
		tpl.Lineage,
		tpl.Version,
		schemaJSON,
		stepsJSON,
		tpl.Active,
		tpl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// Delete удаляет template.
func (r *TemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List возвращает все templates.
func (r *TemplateRepo) List(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	query := `
		SELECT id, name, lineage, version, input_schema, steps, active, created_at
		FROM templates
		ORDER BY lineage ASC, version ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.WorkflowTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

// --- Helpers ---

func scanTemplate(row pgx.Row) (*domain.WorkflowTemplate, error) {
	var tpl domain.WorkflowTemplate
	var schemaJSON, stepsJSON []byte

	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Lineage,
		&tpl.Version,
		&schemaJSON,
		&stepsJSON,
		&tpl.Active,
		&tpl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	if schemaJSON != nil {
		if err := json.Unmarshal(schemaJSON, &tpl.InputSchema); err != nil {
			return nil, fmt.Errorf("unmarshal input_schema: %w", err)
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &tpl.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return &tpl, nil
}
