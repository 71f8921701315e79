package repository

import (
	"context"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// UsageRepository appends usage records (MySQL, source of truth).
type UsageRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, rec model.UsageRecord) error
}

type usageRepo struct{}

func NewUsageRepository() UsageRepository { return &usageRepo{} }

func (r *usageRepo) Insert(ctx context.Context, tx *sqlx.Tx, rec model.UsageRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_records (id, account_id, feature, credits_used, detail, created_at)
		VALUES (?, ?, ?, ?, ?, NOW())
	`, rec.ID, rec.AccountID, rec.Feature.String(), rec.Credits, rec.Detail)
	return err
}
