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

// TaskRepo — репозиторий tasks. Реализует store.TaskStore.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Get возвращает task по ID.
func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, template_id, input, priority, status, current_step,
		       results, errors, created_at, started_at, finished_at
		FROM tasks
		WHERE id = $1
	`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// Put сохраняет task целиком (upsert).
func (r *TaskRepo) Put(ctx context.Context, task *domain.Task) error {
	inputJSON, err := json.Marshal(task.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	resultsJSON, err := json.Marshal(task.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	errorsJSON, err := json.Marshal(task.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := `
		INSERT INTO tasks (id, template_id, input, priority, status, current_step,
		                   results, errors, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET priority = $4, status = $5, current_step = $6,
		    results = $7, errors = $8, started_at = $10, finished_at = $11
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.TemplateID,
		inputJSON,
		task.Priority,
		task.Status,
		task.CurrentStep,
		resultsJSON,
		errorsJSON,
		task.CreatedAt,
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// Delete удаляет task.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List возвращает все tasks в порядке создания.
func (r *TaskRepo) List(ctx context.Context) ([]domain.Task, error) {
	query := `
		SELECT id, template_id, input, priority, status, current_step,
		       results, errors, created_at, started_at, finished_at
		FROM tasks
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// --- Helpers ---

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var inputJSON, resultsJSON, errorsJSON []byte

	err := row.Scan(
		&task.ID,
		&task.TemplateID,
		&inputJSON,
		&task.Priority,
		&task.Status,
		&task.CurrentStep,
		&resultsJSON,
		&errorsJSON,
		&task.CreatedAt,
		&task.StartedAt,
		&task.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &task.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &task.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if errorsJSON != nil {
		if err := json.Unmarshal(errorsJSON, &task.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return &task, nil
}
