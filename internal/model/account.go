package model

import "time"

// Account is a subscriber row. ExternalID is the identity-provider subject,
// immutable after creation. Accounts are soft-deactivated, never deleted.
type Account struct {
	ID         int64     `db:"id"`
	ExternalID string    `db:"external_id"`
	Email      string    `db:"email"`
	PlanKey    string    `db:"plan_key"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// CreditBalance holds the remaining credits for one account (1:1).
// Mutated only through the ledger service.
type CreditBalance struct {
	AccountID    int64      `db:"account_id"`
	Remaining    int64      `db:"remaining"`
	LastSyncedAt *time.Time `db:"last_synced_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
