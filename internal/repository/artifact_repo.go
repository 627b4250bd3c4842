package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/backend/internal/models"
)

type ArtifactRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

func (r *ArtifactRepo) Create(ctx context.Context, a *models.Artifact) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO artifacts (id, user_id, task_type, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.UserID, a.TaskType, a.Content).Scan(&a.CreatedAt)
}

func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	var a models.Artifact
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, task_type, content, created_at
		FROM artifacts WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.TaskType, &a.Content, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
