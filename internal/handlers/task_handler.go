package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pathwise/backend/internal/middleware"
	"github.com/pathwise/backend/internal/models"
	"github.com/pathwise/backend/internal/orchestrator"
	"github.com/pathwise/backend/internal/services"
)

// Orchestrator is the subset of the task service the handler needs.
type Orchestrator interface {
	Submit(ctx context.Context, userID uuid.UUID, taskType string, payload json.RawMessage) (uuid.UUID, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// TaskHandler serves /v1/tasks endpoints.
type TaskHandler struct {
	Orchestrator Orchestrator
	Tasks        TaskLister
	Logger       *slog.Logger
}

// TaskLister backs the convenience listing endpoint.
type TaskLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
}

type createTaskRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// CreateTask handles POST /v1/tasks.
// Auth (via middleware) -> Validate -> Create + Enqueue -> 201.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, `{"error":"type is required"}`, http.StatusBadRequest)
		return
	}

	taskID, err := h.Orchestrator.Submit(r.Context(), userID, req.Type, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrUnknownTaskType):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, services.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("submit task", "type", req.Type, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, createTaskResponse{
		TaskID: taskID.String(),
		Status: models.TaskStatusQueued,
	})
}

// GetTask handles GET /v1/tasks/{id} — the polling endpoint. Tasks are only
// visible to their owner.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Orchestrator.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTaskNotFound) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if task.UserID != userID {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /v1/tasks — the caller's tasks, newest first.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserFromCtx(r.Context())
	if userID == uuid.Nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	tasks, err := h.Tasks.ListByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
