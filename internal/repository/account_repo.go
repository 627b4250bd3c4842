package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Get(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, balance, total_credited, total_debited, created_at, updated_at
		FROM accounts WHERE user_id = $1
	`, userID).Scan(&a.UserID, &a.Balance, &a.TotalCredited, &a.TotalDebited, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureTx creates the account row with a zero balance if it does not exist
// yet. Used by the payment processor so a first purchase provisions the
// account.
func (r *AccountRepo) EnsureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (user_id, balance, total_credited, total_debited)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// BalanceTx reads the current balance inside the caller's transaction.
// Returns pgx.ErrNoRows for a missing account.
func (r *AccountRepo) BalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	return balance, err
}

// DebitTx atomically deducts amount, guarded by the balance check in the
// WHERE clause so two concurrent debits can never drive the balance
// negative. Returns pgx.ErrNoRows when the account is missing or the balance
// is too low; the caller disambiguates with BalanceTx.
func (r *AccountRepo) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance - $2, total_debited = total_debited + $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreditTx adds amount to the balance and the credited total.
func (r *AccountRepo) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2, total_credited = total_credited + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}
