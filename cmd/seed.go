package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/creditwise/credit-gateway/internal/config"
	"github.com/creditwise/credit-gateway/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with plans and demo accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding plans and demo accounts...")

		if err := seedPlans(sqlDB); err != nil {
			return err
		}
		if err := seedAccounts(sqlDB); err != nil {
			return err
		}
		if err := ensureBalances(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

type seedPlan struct {
	key         string
	name        string
	baseCredits int64
	priceCents  int64
	features    string
	sortOrder   int
}

// seedPlans inserts the two launch tiers (idempotent upsert on plan_key).
func seedPlans(dbx *sqlx.DB) error {
	plans := []seedPlan{
		{
			key:         "free",
			name:        "Free",
			baseCredits: 25,
			priceCents:  0,
			features:    `["25 monthly credits","AI text chat","AI audio speech"]`,
			sortOrder:   1,
		},
		{
			key:         "pro",
			name:        "Pro",
			baseCredits: 500,
			priceCents:  1900,
			features:    `["500 monthly credits","AI text chat","AI image generation","AI audio speech","Priority support"]`,
			sortOrder:   2,
		},
	}

	const q = `
INSERT INTO plans
    (plan_key, name, base_credits, price_cents, currency, features, active, sort_order, created_at, updated_at)
VALUES
    (?, ?, ?, ?, 'usd', ?, 1, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name         = VALUES(name),
    base_credits = VALUES(base_credits),
    price_cents  = VALUES(price_cents),
    features     = VALUES(features),
    sort_order   = VALUES(sort_order),
    updated_at   = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, p := range plans {
		if _, err := tx.Exec(q, p.key, p.name, p.baseCredits, p.priceCents, p.features, p.sortOrder, now, now); err != nil {
			return fmt.Errorf("insert plan %q: %w", p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plans: %w", err)
	}
	return nil
}

// seedAccounts inserts deterministic demo accounts (idempotent upsert on
// external_id).
func seedAccounts(dbx *sqlx.DB) error {
	accounts := []struct {
		externalID string
		email      string
		planKey    string
		active     bool
	}{
		{"demo-free-1", "free1@example.com", "free", true},
		{"demo-free-2", "free2@example.com", "free", true},
		{"demo-pro-1", "pro1@example.com", "pro", true},
		{"demo-suspended-1", "suspended@example.com", "free", false},
	}

	const q = `
INSERT INTO accounts
    (external_id, email, plan_key, active, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    email      = VALUES(email),
    plan_key   = VALUES(plan_key),
    active     = VALUES(active),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, a := range accounts {
		if _, err := tx.Exec(q, a.externalID, a.email, a.planKey, a.active, now, now); err != nil {
			return fmt.Errorf("insert account %q: %w", a.externalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// ensureBalances creates balance rows at the plan's base grant for accounts
// that don't have one yet.
func ensureBalances(dbx *sqlx.DB) error {
	const q = `
INSERT INTO credit_balances (account_id, remaining, created_at, updated_at)
SELECT a.id, p.base_credits, NOW(), NOW()
FROM accounts a
JOIN plans p ON p.plan_key = a.plan_key
LEFT JOIN credit_balances b ON b.account_id = a.id
WHERE b.account_id IS NULL
`
	if _, err := dbx.Exec(q); err != nil {
		return fmt.Errorf("ensure balances: %w", err)
	}
	return nil
}
