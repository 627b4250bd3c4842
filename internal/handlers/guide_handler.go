package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/middleware"
	"github.com/pathwise/backend/internal/models"
)

// GuideStore is the guide repository surface the handler needs.
type GuideStore interface {
	Create(ctx context.Context, g *models.Guide) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Guide, error)
}

// GuideHandler serves /v1/guides endpoints. Guide content is generated
// asynchronously by prep_guide and training_slideshow tasks; clients poll
// generation_status here.
type GuideHandler struct {
	Guides GuideStore
	Logger *slog.Logger
}

type createGuideRequest struct {
	Title string `json:"title"`
}

// CreateGuide handles POST /v1/guides: an empty guide shell that later
// generation tasks target.
func (h *GuideHandler) CreateGuide(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createGuideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}

	guide := &models.Guide{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            req.Title,
		GenerationStatus: models.GenerationNone,
	}
	if err := h.Guides.Create(r.Context(), guide); err != nil {
		h.Logger.Error("create guide", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, guide)
}

// GetGuide handles GET /v1/guides/{id}.
func (h *GuideHandler) GetGuide(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	guideID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid guide id"}`, http.StatusBadRequest)
		return
	}

	guide, err := h.Guides.GetByID(r.Context(), guideID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"guide not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get guide", "guide_id", guideID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if guide.UserID != userID {
		http.Error(w, `{"error":"guide not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

// ListGuides handles GET /v1/guides.
func (h *GuideHandler) ListGuides(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	guides, err := h.Guides.ListByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list guides", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, guides)
}
