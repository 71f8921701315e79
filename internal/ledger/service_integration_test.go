//go:build integration

package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creditwise/credit-gateway/internal/cache"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	"github.com/creditwise/credit-gateway/internal/settings"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrent debits serialize on the single conditional UPDATE, which only a
// real server can exhibit. Run with -tags integration against a migrated
// database:
//
//	CREDITGW_TEST_MYSQL_DSN="creditgw:creditgw@tcp(127.0.0.1:3306)/creditgw?parseTime=true" \
//	    go test -tags integration ./internal/ledger/
func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	dsn := os.Getenv("CREDITGW_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CREDITGW_TEST_MYSQL_DSN not set")
	}

	dbx, err := sqlx.Connect("mysql", dsn)
	require.NoError(t, err)
	defer dbx.Close()

	resolver := settings.NewResolver(
		&fakeOverridesRepo{featureCosts: map[string]int64{"ai_text_chat": 3}, planCredits: map[string]int64{}},
		&fakePlansRepo{plans: []model.Plan{{Key: "pro", BaseCredits: 500}}},
		cache.New[map[string]int64](16),
		time.Minute,
	)
	svc := New(
		dbx,
		repository.NewBalancesRepository(dbx),
		repository.NewUsageRepository(),
		repository.NewOutboxRepository(dbx),
		resolver,
		"usage.events",
	)

	externalID := fmt.Sprintf("it-debit-%d", time.Now().UnixNano())
	res, err := dbx.Exec(`
		INSERT INTO accounts (external_id, email, plan_key, active, created_at, updated_at)
		VALUES (?, '', 'pro', 1, NOW(), NOW())
	`, externalID)
	require.NoError(t, err)
	accountID, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = dbx.Exec(`
		INSERT INTO credit_balances (account_id, remaining, created_at, updated_at)
		VALUES (?, 10, NOW(), NOW())
	`, accountID)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = dbx.Exec(`DELETE o FROM outbox o JOIN usage_records u ON u.id = o.aggregate_id WHERE u.account_id = ?`, accountID)
		_, _ = dbx.Exec(`DELETE FROM usage_records WHERE account_id = ?`, accountID)
		_, _ = dbx.Exec(`DELETE FROM credit_balances WHERE account_id = ?`, accountID)
		_, _ = dbx.Exec(`DELETE FROM accounts WHERE id = ?`, accountID)
	})

	acct := &model.Account{ID: accountID, ExternalID: externalID, PlanKey: "pro", Active: true}

	// Cost 3 against balance 10: exactly 3 of the racing debits fit.
	const workers = 8
	var wg sync.WaitGroup
	var charged, insufficient atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), acct, "ai_text_chat", 1, "")
			switch {
			case err == nil:
				charged.Add(1)
			case errors.Is(err, ErrInsufficientCredits):
				insufficient.Add(1)
			default:
				t.Errorf("debit: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), charged.Load())
	assert.Equal(t, int64(workers-3), insufficient.Load())

	b, err := svc.GetBalance(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Remaining)

	var usageCount int
	require.NoError(t, dbx.Get(&usageCount, `SELECT COUNT(*) FROM usage_records WHERE account_id = ?`, accountID))
	assert.Equal(t, 3, usageCount, "one usage record per successful debit")
}
