package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds.
const (
	LedgerEntryCredit = "credit"
	LedgerEntryDebit  = "debit"
)

// creditNamespace is the UUIDv5 namespace for credit entry ids. Never change
// this value: credit idempotency depends on the same external event id always
// hashing to the same entry id.
var creditNamespace = uuid.MustParse("7c9e2f1a-4b8d-4e0f-9a36-51c2d8b7e4a0")

// CreditEntryID derives the deterministic ledger entry id for a payment
// event. Two deliveries of the same event collide on the primary key, which
// is what makes crediting idempotent.
func CreditEntryID(externalEventID string) uuid.UUID {
	return uuid.NewSHA1(creditNamespace, []byte(externalEventID))
}

// LedgerEntry is one immutable audit record of a balance change.
type LedgerEntry struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Kind             string     `json:"kind"`
	Amount           int64      `json:"amount"`
	ResultingBalance int64      `json:"resulting_balance"`
	Reason           string     `json:"reason"`
	ResourceID       *uuid.UUID `json:"resource_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
