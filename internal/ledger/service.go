package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/models"
)

// AccountStore is the minimal account repository interface the ledger needs.
// All methods run inside the transaction the service opens.
type AccountStore interface {
	EnsureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	BalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error)
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error)
}

// EntryStore is the minimal ledger-entry repository interface.
type EntryStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	InsertCreditTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) (bool, error)
	UpdateResultingBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the token ledger: atomic credit and debit over the account
// store. Balance mutations happen nowhere else.
type Service struct {
	db       TxBeginner
	accounts AccountStore
	entries  EntryStore
}

func NewService(db TxBeginner, accounts AccountStore, entries EntryStore) *Service {
	return &Service{db: db, accounts: accounts, entries: entries}
}

// CreditResult reports the outcome of a credit attempt. AlreadyProcessed is
// true when the external event was credited by an earlier delivery.
type CreditResult struct {
	EntryID          uuid.UUID
	NewBalance       int64
	AlreadyProcessed bool
}

// Debit deducts cost from the user's balance and appends a debit entry, all
// in one transaction. The conditional UPDATE in AccountStore.DebitTx
// serializes conflicting debits: two concurrent debits whose combined cost
// exceeds the balance cannot both succeed.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, cost int64, reason string, resourceID *uuid.UUID) (int64, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("debit cost must be positive, got %d", cost)
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.accounts.DebitTx(ctx, tx, userID, cost)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("debit account: %w", err)
		}
		// Zero rows: the account is missing or underfunded.
		balance, berr := s.accounts.BalanceTx(ctx, tx, userID)
		if errors.Is(berr, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		if berr != nil {
			return 0, fmt.Errorf("read balance: %w", berr)
		}
		return 0, &InsufficientBalanceError{Balance: balance, Required: cost}
	}

	entry := &models.LedgerEntry{
		ID:               uuid.New(),
		UserID:           userID,
		Kind:             models.LedgerEntryDebit,
		Amount:           cost,
		ResultingBalance: newBalance,
		Reason:           reason,
		ResourceID:       resourceID,
	}
	if err := s.entries.InsertTx(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("insert debit entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit debit tx: %w", err)
	}
	return newBalance, nil
}

// Credit applies a payment event exactly once. The entry id is deterministic
// from externalEventID, and the entry insert (ON CONFLICT DO NOTHING) is the
// race gate: if two deliveries race, exactly one inserts the entry and
// updates the balance; the other sees zero rows and reports
// AlreadyProcessed without mutating anything.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, externalEventID, reason string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	if externalEventID == "" {
		return CreditResult{}, fmt.Errorf("external event id is required")
	}

	entryID := models.CreditEntryID(externalEventID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return CreditResult{}, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// First purchase provisions the account.
	if err := s.accounts.EnsureTx(ctx, tx, userID); err != nil {
		return CreditResult{}, fmt.Errorf("ensure account: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:     entryID,
		UserID: userID,
		Kind:   models.LedgerEntryCredit,
		Amount: amount,
		Reason: reason,
	}
	inserted, err := s.entries.InsertCreditTx(ctx, tx, entry)
	if err != nil {
		return CreditResult{}, fmt.Errorf("insert credit entry: %w", err)
	}
	if !inserted {
		balance, berr := s.accounts.BalanceTx(ctx, tx, userID)
		if berr != nil {
			return CreditResult{}, fmt.Errorf("read balance: %w", berr)
		}
		if err := tx.Commit(ctx); err != nil {
			return CreditResult{}, fmt.Errorf("commit credit tx: %w", err)
		}
		return CreditResult{EntryID: entryID, NewBalance: balance, AlreadyProcessed: true}, nil
	}

	newBalance, err := s.accounts.CreditTx(ctx, tx, userID, amount)
	if err != nil {
		return CreditResult{}, fmt.Errorf("credit account: %w", err)
	}
	if err := s.entries.UpdateResultingBalanceTx(ctx, tx, entryID, newBalance); err != nil {
		return CreditResult{}, fmt.Errorf("record resulting balance: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return CreditResult{}, fmt.Errorf("commit credit tx: %w", err)
	}
	return CreditResult{EntryID: entryID, NewBalance: newBalance}, nil
}
