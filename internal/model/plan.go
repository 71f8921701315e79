package model

import (
	"encoding/json"
	"time"
)

// DefaultPlanKey is the plan assigned to accounts created on first access.
const DefaultPlanKey = "free"

// Plan is a purchasable tier. Administrator-managed, read-mostly.
type Plan struct {
	ID          int64   `db:"id"`
	Key         string  `db:"plan_key"`
	Name        string  `db:"name"`
	BillingRef  *string `db:"billing_ref"` // billing-provider price id, nullable
	BaseCredits int64   `db:"base_credits"`
	PriceCents  int64   `db:"price_cents"`
	Currency    string  `db:"currency"`
	Features    string  `db:"features"` // JSON array of feature descriptions
	Active      bool    `db:"active"`
	SortOrder   int     `db:"sort_order"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FeatureList decodes the features column; a malformed or empty column
// yields an empty list.
func (p Plan) FeatureList() []string {
	var out []string
	if err := json.Unmarshal([]byte(p.Features), &out); err != nil {
		return nil
	}
	return out
}

// PlanCreditOverride replaces a plan's base credit grant at resolve time.
// At most one row per plan key.
type PlanCreditOverride struct {
	ID        int64     `db:"id"`
	PlanKey   string    `db:"plan_key"`
	Credits   int64     `db:"credits"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FeatureCostOverride replaces the compiled-in cost of one operation type.
// At most one row per feature key.
type FeatureCostOverride struct {
	ID        int64     `db:"id"`
	Feature   string    `db:"feature"`
	Cost      int64     `db:"cost"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
