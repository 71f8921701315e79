package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type BalancesRepository interface {
	// EnsureRow lazily creates the balance row with the given initial grant.
	// A no-op when the row already exists.
	EnsureRow(ctx context.Context, tx *sqlx.Tx, accountID, initial int64) error
	Get(ctx context.Context, accountID int64) (*model.CreditBalance, error)
	// DebitIfSufficient decrements remaining by amount only when the balance
	// covers it, in a single conditional statement. Returns false when the
	// balance was insufficient; no partial deduction in either case.
	DebitIfSufficient(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) (bool, error)
	Credit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error
	// ResetToGrant sets remaining to the plan grant and stamps last_synced_at.
	ResetToGrant(ctx context.Context, tx *sqlx.Tx, accountID, grant int64) error
}

type balancesRepo struct {
	db *sqlx.DB
}

func NewBalancesRepository(db *sqlx.DB) BalancesRepository { return &balancesRepo{db: db} }

func (r *balancesRepo) EnsureRow(ctx context.Context, tx *sqlx.Tx, accountID, initial int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_balances (account_id, remaining, created_at, updated_at)
		VALUES (?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE account_id = account_id
	`, accountID, initial)
	return err
}

func (r *balancesRepo) Get(ctx context.Context, accountID int64) (*model.CreditBalance, error) {
	var b model.CreditBalance
	err := r.db.GetContext(ctx, &b, `
		SELECT account_id, remaining, last_synced_at, created_at, updated_at
		  FROM credit_balances
		 WHERE account_id = ? LIMIT 1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balancesRepo) DebitIfSufficient(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET remaining = remaining - ?, updated_at = NOW()
		WHERE account_id = ? AND remaining >= ?
	`, amount, accountID, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *balancesRepo) Credit(ctx context.Context, tx *sqlx.Tx, accountID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET remaining = remaining + ?, updated_at = NOW()
		WHERE account_id = ?
	`, amount, accountID)
	return err
}

func (r *balancesRepo) ResetToGrant(ctx context.Context, tx *sqlx.Tx, accountID, grant int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_balances
		SET remaining = ?, last_synced_at = NOW(), updated_at = NOW()
		WHERE account_id = ?
	`, grant, accountID)
	return err
}
