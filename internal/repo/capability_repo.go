package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
)

// CapabilityRepo — репозиторий capability descriptors.
// Реализует store.CapabilityStore.
type CapabilityRepo struct {
	pool *pgxpool.Pool
}

// NewCapabilityRepo создаёт новый CapabilityRepo.
func NewCapabilityRepo(pool *pgxpool.Pool) *CapabilityRepo {
	return &CapabilityRepo{pool: pool}
}

// Get возвращает descriptor по ID.
func (r *CapabilityRepo) Get(ctx context.Context, id string) (*domain.CapabilityDescriptor, error) {
	query := `
		SELECT id, category, runner, config, input_schema, output_schema,
		       authorized_holders, invocations, successes, failures,
		       total_latency_ms, last_invoked_at, created_at
		FROM capabilities
		WHERE id = $1
	`
	return scanCapability(r.pool.QueryRow(ctx, query, id))
}

// Put сохраняет descriptor целиком (upsert).
func (r *CapabilityRepo) Put(ctx context.Context, d *domain.CapabilityDescriptor) error {
	configJSON, err := json.Marshal(d.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	inputJSON, err := json.Marshal(d.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input_schema: %w", err)
	}
	outputJSON, err := json.Marshal(d.OutputSchema)
	if err != nil {
		return fmt.Errorf("marshal output_schema: %w", err)
	}
	holdersJSON, err := json.Marshal(d.AuthorizedHolders)
	if err != nil {
		return fmt.Errorf("marshal authorized_holders: %w", err)
	}

	query := `
		INSERT INTO capabilities (id, category, runner, config, input_schema, output_schema,
		                          authorized_holders, invocations, successes, failures,
		                          total_latency_ms, last_invoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET category = $2, runner = $3, config = $4, input_schema = $5,
		    output_schema = $6, authorized_holders = $7, invocations = $8,
		    successes = $9, failures = $10, total_latency_ms = $11, last_invoked_at = $12
	`
	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.Category,
		d.Runner,
		configJSON,
		inputJSON,
		outputJSON,
		holdersJSON,
		d.Invocations,
		d.Successes,
		d.Failures,
		d.TotalLatencyMs,
		d.LastInvokedAt,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert capability: %w", err)
	}
	return nil
}

// Delete удаляет descriptor.
func (r *CapabilityRepo) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM capabilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete capability: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List возвращает все descriptors по возрастанию ID.
func (r *CapabilityRepo) List(ctx context.Context) ([]domain.CapabilityDescriptor, error) {
	query := `
		SELECT id, category, runner, config, input_schema, output_schema,
		       authorized_holders, invocations, successes, failures,
		       total_latency_ms, last_invoked_at, created_at
		FROM capabilities
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var descriptors []domain.CapabilityDescriptor
	for rows.Next() {
		d, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, *d)
	}
	return descriptors, rows.Err()
}

// --- Helpers ---

func scanCapability(row pgx.Row) (*domain.CapabilityDescriptor, error) {
	var d domain.CapabilityDescriptor
	var configJSON, inputJSON, outputJSON, holdersJSON []byte

	err := row.Scan(
		&d.ID,
		&d.Category,
		&d.Runner,
		&configJSON,
		&inputJSON,
		&outputJSON,
		&holdersJSON,
		&d.Invocations,
		&d.Successes,
		&d.Failures,
		&d.TotalLatencyMs,
		&d.LastInvokedAt,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan capability: %w", err)
	}

	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &d.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &d.InputSchema); err != nil {
			return nil, fmt.Errorf("unmarshal input_schema: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &d.OutputSchema); err != nil {
			return nil, fmt.Errorf("unmarshal output_schema: %w", err)
		}
	}
	if holdersJSON != nil {
		if err := json.Unmarshal(holdersJSON, &d.AuthorizedHolders); err != nil {
			return nil, fmt.Errorf("unmarshal authorized_holders: %w", err)
		}
	}
	return &d, nil
}
