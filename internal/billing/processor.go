package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pathwise/backend/internal/ledger"
)

// ErrInvalidEvent rejects a malformed payment event before any side effect.
var ErrInvalidEvent = errors.New("invalid payment event")

// PaymentEvent is the processed shape of a provider-signed payment
// notification. Signature verification happens upstream, before this type is
// constructed.
type PaymentEvent struct {
	ExternalEventID string    `json:"external_event_id"`
	UserID          uuid.UUID `json:"user_id"`
	TokenAmount     int64     `json:"token_amount"`
	PackageID       string    `json:"package_id,omitempty"`
}

// Ledger is the crediting interface the processor depends on.
type Ledger interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int64, externalEventID, reason string) (ledger.CreditResult, error)
}

// Processor consumes completed-payment events and credits token balances.
// Delivery is at-least-once and the processor may run concurrently across
// instances, so deduplication lives in the ledger's idempotent credit, not
// here.
type Processor struct {
	ledger Ledger
	logger *slog.Logger
}

func NewProcessor(l Ledger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{ledger: l, logger: logger}
}

// Process credits the event's token amount exactly once per distinct
// external event id. A duplicate delivery is a successful no-op.
func (p *Processor) Process(ctx context.Context, event PaymentEvent) error {
	if event.ExternalEventID == "" {
		return fmt.Errorf("%w: missing external event id", ErrInvalidEvent)
	}
	if event.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if event.TokenAmount <= 0 {
		return fmt.Errorf("%w: token amount must be positive, got %d", ErrInvalidEvent, event.TokenAmount)
	}

	reason := "purchase"
	if event.PackageID != "" {
		reason = "purchase:" + event.PackageID
	}

	res, err := p.ledger.Credit(ctx, event.UserID, event.TokenAmount, event.ExternalEventID, reason)
	if err != nil {
		return fmt.Errorf("credit payment event %s: %w", event.ExternalEventID, err)
	}
	if res.AlreadyProcessed {
		p.logger.Debug("duplicate payment event ignored",
			"event_id", event.ExternalEventID, "user_id", event.UserID)
		return nil
	}
	p.logger.Info("payment event credited",
		"event_id", event.ExternalEventID, "user_id", event.UserID,
		"amount", event.TokenAmount, "new_balance", res.NewBalance)
	return nil
}
