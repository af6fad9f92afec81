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

// ScheduleRepo — репозиторий schedules. Реализует store.ScheduleStore.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Get возвращает schedule по ID.
func (r *ScheduleRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT id, template_id, name, cron_expr, interval_sec, timezone,
		       enabled, auto_execute, inputs, priority, next_due_at,
		       last_run_at, last_task_id, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// Put сохраняет schedule целиком (upsert).
func (r *ScheduleRepo) Put(ctx context.Context, s *domain.Schedule) error {
	inputsJSON, err := json.Marshal(s.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO schedules (id, template_id, name, cron_expr, interval_sec, timezone,
		                       enabled, auto_execute, inputs, priority, next_due_at,
		                       last_run_at, last_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE
		SET name = $3, cron_expr = $4, interval_sec = $5, timezone = $6,
		    enabled = $7, auto_execute = $8, inputs = $9, priority = $10,
		    next_due_at = $11, last_run_at = $12, last_task_id = $13, updated_at = $15
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.TemplateID,
		s.Name,
		nullString(s.CronExpr),
		s.IntervalSec,
		s.Timezone,
		s.Enabled,
		s.AutoExecute,
		inputsJSON,
		s.Priority,
		s.NextDueAt,
		s.LastRunAt,
		s.LastTaskID,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List возвращает все schedules.
func (r *ScheduleRepo) List(ctx context.Context) ([]domain.Schedule, error) {
	query := `
		SELECT id, template_id, name, cron_expr, interval_sec, timezone,
		       enabled, auto_execute, inputs, priority, next_due_at,
		       last_run_at, last_task_id, created_at, updated_at
		FROM schedules
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// --- Helpers ---

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var cronExpr *string
	var inputsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.TemplateID,
		&s.Name,
		&cronExpr,
		&s.IntervalSec,
		&s.Timezone,
		&s.Enabled,
		&s.AutoExecute,
		&inputsJSON,
		&s.Priority,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastTaskID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &s.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	return &s, nil
}
