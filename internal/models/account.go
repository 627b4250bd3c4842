package models

import (
	"time"

	"github.com/google/uuid"
)

// Account holds the token balance for one user. Balance is derived state:
// balance == total_credited - total_debited, maintained by the ledger service
// updating all three columns in a single transaction.
type Account struct {
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance"`
	TotalCredited int64     `json:"total_credited"`
	TotalDebited  int64     `json:"total_debited"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
