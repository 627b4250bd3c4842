package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Artifact is a produced generation result (optimized resume, prep guide,
// cover letter, ...). Tasks reference artifacts by id; artifact rows are
// never mutated after insert.
type Artifact struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	TaskType  string          `json:"task_type"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}
