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

// ResourceRepo — репозиторий resources и их архивных версий.
// Реализует store.ResourceStore.
type ResourceRepo struct {
	pool *pgxpool.Pool
}

// NewResourceRepo создаёт новый ResourceRepo.
func NewResourceRepo(pool *pgxpool.Pool) *ResourceRepo {
	return &ResourceRepo{pool: pool}
}

// Get возвращает resource по ID.
func (r *ResourceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	query := `
		SELECT id, name, type, content, version, access_level, owner_id,
		       tags, grants, checksum, size, created_at, updated_at
		FROM resources
		WHERE id = $1
	`
	return scanResource(r.pool.QueryRow(ctx, query, id))
}

// Put сохраняет resource целиком (upsert).
func (r *ResourceRepo) Put(ctx context.Context, res *domain.Resource) error {
	tagsJSON, err := json.Marshal(res.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	grantsJSON, err := json.Marshal(res.Grants)
	if err != nil {
		return fmt.Errorf("marshal grants: %w", err)
	}

	query := `
		INSERT INTO resources (id, name, type, content, version, access_level, owner_id,
		                       tags, grants, checksum, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, type = $3, content = $4, version = $5, access_level = $6,
		    tags = $8, grants = $9, checksum = $10, size = $11, updated_at = $13
	`
	_, err = r.pool.Exec(ctx, query,
		res.ID,
		res.Name,
		res.Type,
		res.Content,
		res.Version,
		res.AccessLevel,
		res.OwnerID,
		tagsJSON,
		grantsJSON,
		res.Checksum,
		res.Size,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert resource: %w", err)
	}
	return nil
}

// Delete удаляет resource.
func (r *ResourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List возвращает все resources.
func (r *ResourceRepo) List(ctx context.Context) ([]domain.Resource, error) {
	query := `
		SELECT id, name, type, content, version, access_level, owner_id,
		       tags, grants, checksum, size, created_at, updated_at
		FROM resources
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

// PutVersion сохраняет архивный снимок версии. Снимки неизменяемы,
// поэтому конфликт (resource_id, version) — no-op.
func (r *ResourceRepo) PutVersion(ctx context.Context, v *domain.ResourceVersion) error {
	query := `
		INSERT INTO resource_versions (resource_id, version, content, checksum, size, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (resource_id, version) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		v.ResourceID,
		v.Version,
		v.Content,
		v.Checksum,
		v.Size,
		v.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource version: %w", err)
	}
	return nil
}

// ListVersions возвращает снимки resource по возрастанию версии.
func (r *ResourceRepo) ListVersions(ctx context.Context, resourceID uuid.UUID) ([]domain.ResourceVersion, error) {
	query := `
		SELECT resource_id, version, content, checksum, size, archived_at
		FROM resource_versions
		WHERE resource_id = $1
		ORDER BY version ASC
	`
	rows, err := r.pool.Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list resource versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ResourceVersion
	for rows.Next() {
		var v domain.ResourceVersion
		err := rows.Scan(&v.ResourceID, &v.Version, &v.Content, &v.Checksum, &v.Size, &v.ArchivedAt)
		if err != nil {
			return nil, fmt.Errorf("scan resource version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// DeleteVersions удаляет все снимки resource.
func (r *ResourceRepo) DeleteVersions(ctx context.Context, resourceID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM resource_versions WHERE resource_id = $1`, resourceID)
	if err != nil {
		return fmt.Errorf("delete resource versions: %w", err)
	}
	return nil
}

// --- Helpers ---

func scanResource(row pgx.Row) (*domain.Resource, error) {
	var res domain.Resource
	var tagsJSON, grantsJSON []byte

	err := row.Scan(
		&res.ID,
		&res.Name,
		&res.Type,
		&res.Content,
		&res.Version,
		&res.AccessLevel,
		&res.OwnerID,
		&tagsJSON,
		&grantsJSON,
		&res.Checksum,
		&res.Size,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan resource: %w", err)
	}

	if tagsJSON != nil {
		if err := json.Unmarshal(tagsJSON, &res.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if grantsJSON != nil {
		if err := json.Unmarshal(grantsJSON, &res.Grants); err != nil {
			return nil, fmt.Errorf("unmarshal grants: %w", err)
		}
	}
	return &res, nil
}
