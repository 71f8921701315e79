package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type AccountsRepository interface {
	// GetOrCreate returns the account for the identity-provider subject,
	// creating it on first authenticated access. The upsert and the read are
	// one round trip each; no existence check races a separate create.
	GetOrCreate(ctx context.Context, externalID, email, planKey string) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Account, error)
	Deactivate(ctx context.Context, id int64) error
}

type AccountsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) *AccountsRepositoryImpl {
	return &AccountsRepositoryImpl{db: db}
}

var _ AccountsRepository = (*AccountsRepositoryImpl)(nil)

func (r *AccountsRepositoryImpl) GetOrCreate(ctx context.Context, externalID, email, planKey string) (*model.Account, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (external_id, email, plan_key, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE email = VALUES(email), updated_at = NOW()
	`, externalID, email, planKey)
	if err != nil {
		return nil, err
	}
	return r.GetByExternalID(ctx, externalID)
}

func (r *AccountsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, external_id, email, plan_key, active, created_at, updated_at
		  FROM accounts
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountsRepositoryImpl) GetByExternalID(ctx context.Context, externalID string) (*model.Account, error) {
	var a model.Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, external_id, email, plan_key, active, created_at, updated_at
		  FROM accounts
		 WHERE external_id = ? LIMIT 1
	`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Deactivate soft-disables an account; rows are never hard-deleted.
func (r *AccountsRepositoryImpl) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET active = 0, updated_at = NOW() WHERE id = ?
	`, id)
	return err
}
