package repository

import (
	"context"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// OverridesRepository persists administrator-supplied settings overrides.
// At most one row exists per feature key and per plan key.
type OverridesRepository interface {
	ListFeatureCosts(ctx context.Context) ([]model.FeatureCostOverride, error)
	ListPlanCredits(ctx context.Context) ([]model.PlanCreditOverride, error)
	// Upserts run inside the given tx when non-nil so one settings write can
	// cover many keys atomically.
	UpsertFeatureCost(ctx context.Context, tx *sqlx.Tx, feature string, cost int64) error
	UpsertPlanCredit(ctx context.Context, tx *sqlx.Tx, planKey string, credits int64) error
	// Apply upserts every given override in one transaction; a failure on any
	// key persists none of them.
	Apply(ctx context.Context, featureCosts, planCredits map[string]int64) error
}

type OverridesRepositoryImpl struct {
	db *sqlx.DB
}

func NewOverridesRepository(db *sqlx.DB) *OverridesRepositoryImpl {
	return &OverridesRepositoryImpl{db: db}
}

var _ OverridesRepository = (*OverridesRepositoryImpl)(nil)

func (r *OverridesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *OverridesRepositoryImpl) ListFeatureCosts(ctx context.Context) ([]model.FeatureCostOverride, error) {
	var rows []model.FeatureCostOverride
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, feature, cost, created_at, updated_at FROM feature_cost_overrides
	`)
	return rows, err
}

func (r *OverridesRepositoryImpl) ListPlanCredits(ctx context.Context) ([]model.PlanCreditOverride, error) {
	var rows []model.PlanCreditOverride
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, plan_key, credits, created_at, updated_at FROM plan_credit_overrides
	`)
	return rows, err
}

func (r *OverridesRepositoryImpl) UpsertFeatureCost(ctx context.Context, tx *sqlx.Tx, feature string, cost int64) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feature_cost_overrides (feature, cost, created_at, updated_at)
			VALUES (?, ?, NOW(), NOW())
			ON DUPLICATE KEY UPDATE cost = VALUES(cost), updated_at = NOW()
		`, feature, cost)
		return err
	})
}

func (r *OverridesRepositoryImpl) Apply(ctx context.Context, featureCosts, planCredits map[string]int64) error {
	return r.withTx(ctx, nil, func(tx *sqlx.Tx) error {
		for feature, cost := range featureCosts {
			if err := r.UpsertFeatureCost(ctx, tx, feature, cost); err != nil {
				return err
			}
		}
		for planKey, credits := range planCredits {
			if err := r.UpsertPlanCredit(ctx, tx, planKey, credits); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OverridesRepositoryImpl) UpsertPlanCredit(ctx context.Context, tx *sqlx.Tx, planKey string, credits int64) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_credit_overrides (plan_key, credits, created_at, updated_at)
			VALUES (?, ?, NOW(), NOW())
			ON DUPLICATE KEY UPDATE credits = VALUES(credits), updated_at = NOW()
		`, planKey, credits)
		return err
	})
}
