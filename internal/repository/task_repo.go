package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts a queued task within the caller's transaction, so the
// job-queue enqueue and the task row commit or roll back together.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, user_id, type, status, progress, stage, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.UserID, t.Type, t.Status, t.Progress, t.Stage, t.Payload).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var t models.Task
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, status, progress, stage, payload, result_id, error, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &t.Progress, &t.Stage, &t.Payload, &t.ResultID, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, status, progress, stage, payload, result_id, error, created_at, updated_at
		FROM tasks WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Status, &t.Progress, &t.Stage, &t.Payload, &t.ResultID, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// Claim transitions queued -> processing. Zero rows affected means the task
// was already claimed or is terminal; callers treat that as a no-op.
func (r *TaskRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, models.TaskStatusProcessing, models.TaskStatusQueued)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProgress persists a monotone progress update. GREATEST keeps a stale
// writer from moving progress backwards, and the status guard keeps terminal
// tasks immutable.
func (r *TaskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, stage string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET progress = GREATEST(progress, $2), stage = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, progress, stage, models.TaskStatusProcessing)
	return err
}

// Complete transitions processing -> completed and records the artifact.
func (r *TaskRepo) Complete(ctx context.Context, id uuid.UUID, resultID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, progress = 100, result_id = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.TaskStatusCompleted, resultID, models.TaskStatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Fail transitions a non-terminal task to failed with a reason.
func (r *TaskRepo) Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, error = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, models.TaskStatusFailed, reason, models.TaskStatusQueued, models.TaskStatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
