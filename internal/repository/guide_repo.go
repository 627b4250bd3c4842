package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/backend/internal/models"
)

type GuideRepo struct {
	pool *pgxpool.Pool
}

func NewGuideRepo(pool *pgxpool.Pool) *GuideRepo {
	return &GuideRepo{pool: pool}
}

func (r *GuideRepo) Create(ctx context.Context, g *models.Guide) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO guides (id, user_id, title, generation_status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, g.ID, g.UserID, g.Title, g.GenerationStatus).Scan(&g.CreatedAt, &g.UpdatedAt)
}

func (r *GuideRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	var g models.Guide
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, generation_status, content, result_id, created_at, updated_at
		FROM guides WHERE id = $1
	`, id).Scan(&g.ID, &g.UserID, &g.Title, &g.GenerationStatus, &g.Content, &g.ResultID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuideRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Guide, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, generation_status, content, result_id, created_at, updated_at
		FROM guides WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Guide
	for rows.Next() {
		var g models.Guide
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.GenerationStatus, &g.Content, &g.ResultID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &g)
	}
	return list, rows.Err()
}

// TryStartGeneration is the generation-lock acquire: a single compare-and-set
// UPDATE so two concurrent claimants cannot both proceed. Only none and
// failed states are claimable; generating and completed are not.
func (r *GuideRepo) TryStartGeneration(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE guides SET generation_status = $2, updated_at = now()
		WHERE id = $1 AND generation_status IN ($3, $4)
	`, id, models.GenerationGenerating, models.GenerationNone, models.GenerationFailed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteGeneration stores the generated content and releases the lock as
// completed so later requests reuse the cached result.
func (r *GuideRepo) CompleteGeneration(ctx context.Context, id uuid.UUID, content json.RawMessage, resultID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE guides SET generation_status = $2, content = $3, result_id = $4, updated_at = now()
		WHERE id = $1
	`, id, models.GenerationCompleted, content, resultID)
	return err
}

// FailGeneration releases the lock as failed so a future request may retry.
func (r *GuideRepo) FailGeneration(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE guides SET generation_status = $2, updated_at = now()
		WHERE id = $1 AND generation_status = $3
	`, id, models.GenerationFailed, models.GenerationGenerating)
	return err
}
