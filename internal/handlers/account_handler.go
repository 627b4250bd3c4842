package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/middleware"
	"github.com/pathwise/backend/internal/models"
)

const defaultLedgerPageSize = 50

// AccountStore reads the authenticated user's account row.
type AccountStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Account, error)
}

// LedgerStore reads the user's ledger history.
type LedgerStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

// AccountHandler serves /v1/account endpoints.
type AccountHandler struct {
	Accounts AccountStore
	Entries  LedgerStore
	Logger   *slog.Logger
}

type balanceResponse struct {
	Balance       int64 `json:"balance"`
	TotalCredited int64 `json:"total_credited"`
	TotalDebited  int64 `json:"total_debited"`
}

// GetBalance handles GET /v1/account/balance. A user with no account row yet
// simply has a zero balance; the row is created on first credit.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	acc, err := h.Accounts.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, balanceResponse{})
			return
		}
		h.Logger.Error("get balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Balance:       acc.Balance,
		TotalCredited: acc.TotalCredited,
		TotalDebited:  acc.TotalDebited,
	})
}

// GetLedger handles GET /v1/account/ledger?limit=N, newest entries first.
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	limit := defaultLedgerPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, `{"error":"limit must be between 1 and 200"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.Entries.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.Logger.Error("list ledger", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
