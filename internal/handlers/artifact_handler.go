package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/middleware"
	"github.com/pathwise/backend/internal/models"
)

// ArtifactStore reads generation results.
type ArtifactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
}

// ArtifactHandler serves GET /v1/artifacts/{id}: the result a completed
// task's result_id points to.
type ArtifactHandler struct {
	Artifacts ArtifactStore
	Logger    *slog.Logger
}

func (h *ArtifactHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	artifactID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid artifact id"}`, http.StatusBadRequest)
		return
	}

	artifact, err := h.Artifacts.GetByID(r.Context(), artifactID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get artifact", "artifact_id", artifactID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if artifact.UserID != userID {
		http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}
