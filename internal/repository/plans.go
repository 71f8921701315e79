package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type PlansRepository interface {
	List(ctx context.Context) ([]model.Plan, error)
	ListActive(ctx context.Context) ([]model.Plan, error)
	GetByKey(ctx context.Context, key string) (*model.Plan, error)
}

type PlansRepositoryImpl struct {
	db *sqlx.DB
}

func NewPlansRepository(db *sqlx.DB) *PlansRepositoryImpl {
	return &PlansRepositoryImpl{db: db}
}

var _ PlansRepository = (*PlansRepositoryImpl)(nil)

const planColumns = `id, plan_key, name, billing_ref, base_credits, price_cents,
	currency, features, active, sort_order, created_at, updated_at`

func (r *PlansRepositoryImpl) List(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.SelectContext(ctx, &plans, `
		SELECT `+planColumns+` FROM plans ORDER BY sort_order, id
	`)
	return plans, err
}

func (r *PlansRepositoryImpl) ListActive(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.SelectContext(ctx, &plans, `
		SELECT `+planColumns+` FROM plans WHERE active = 1 ORDER BY sort_order, id
	`)
	return plans, err
}

func (r *PlansRepositoryImpl) GetByKey(ctx context.Context, key string) (*model.Plan, error) {
	var p model.Plan
	err := r.db.GetContext(ctx, &p, `
		SELECT `+planColumns+` FROM plans WHERE plan_key = ? LIMIT 1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
