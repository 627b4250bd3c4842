package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task status enum. queued -> processing -> completed|failed; terminal
// states are never left.
const (
	TaskStatusQueued     = "queued"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// Task type enum: the paid generation features.
const (
	TaskTypeAnalyze           = "analyze"
	TaskTypeOptimize          = "optimize"
	TaskTypeAddSkill          = "add_skill"
	TaskTypePrepGuide         = "prep_guide"
	TaskTypeCoverLetter       = "cover_letter"
	TaskTypeTrainingSlideshow = "training_slideshow"
)

// TaskCosts maps each task type to its token cost. Charged on attempt, not
// on success.
var TaskCosts = map[string]int64{
	TaskTypeAnalyze:           10,
	TaskTypeOptimize:          25,
	TaskTypeAddSkill:          5,
	TaskTypePrepGuide:         30,
	TaskTypeCoverLetter:       15,
	TaskTypeTrainingSlideshow: 40,
}

// IsTerminalTaskStatus reports whether a task in this status accepts no
// further transitions.
func IsTerminalTaskStatus(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

type Task struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Stage     string          `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	ResultID  *uuid.UUID      `json:"result_id,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
