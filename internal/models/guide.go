package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Guide generation_status enum — the per-resource generation lock. Stored on
// the guide row itself so lock transitions are single-statement
// compare-and-set updates.
const (
	GenerationNone       = "none"
	GenerationGenerating = "generating"
	GenerationCompleted  = "completed"
	GenerationFailed     = "failed"
)

// Guide is a prep-guide or training entry that expensive generation work is
// keyed against. Two tasks targeting the same guide must not both pay for
// generation; the generation_status field serializes them.
type Guide struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	Title            string          `json:"title"`
	GenerationStatus string          `json:"generation_status"`
	Content          json.RawMessage `json:"content,omitempty"`
	ResultID         *uuid.UUID      `json:"result_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
