package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathwise/backend/internal/models"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// InsertTx appends a ledger entry within the caller's transaction.
func (r *LedgerRepo) InsertTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, amount, resulting_balance, reason, resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.UserID, e.Kind, e.Amount, e.ResultingBalance, e.Reason, e.ResourceID).Scan(&e.CreatedAt)
}

// InsertCreditTx inserts a credit entry whose id is derived from the external
// payment event. The primary-key conflict is the idempotency gate: a
// duplicate delivery inserts zero rows and the caller skips the balance
// update.
func (r *LedgerRepo) InsertCreditTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, amount, resulting_balance, reason, resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.UserID, e.Kind, e.Amount, e.ResultingBalance, e.Reason, e.ResourceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateResultingBalanceTx backfills the resulting balance on an entry
// inserted earlier in the same transaction.
func (r *LedgerRepo) UpdateResultingBalanceTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error {
	_, err := tx.Exec(ctx, `UPDATE ledger_entries SET resulting_balance = $2 WHERE id = $1`, id, balance)
	return err
}

func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, kind, amount, resulting_balance, reason, resource_id, created_at
		FROM ledger_entries WHERE id = $1
	`, id).Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.ResultingBalance, &e.Reason, &e.ResourceID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, amount, resulting_balance, reason, resource_id, created_at
		FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.ResultingBalance, &e.Reason, &e.ResourceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
