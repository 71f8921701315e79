package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creditwise/credit-gateway/internal/metrics"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	"github.com/creditwise/credit-gateway/internal/settings"
	"github.com/creditwise/credit-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownPlan         = errors.New("unknown plan")
)

// Service is the exclusive owner of credit balance rows. Every mutation runs
// in a single transaction; the sufficiency check and the decrement are one
// conditional statement, so concurrent debits against the same account can
// never both pass on a stale read.
type Service struct {
	db         *sqlx.DB
	balances   repository.BalancesRepository
	usage      repository.UsageRepository
	outbox     repository.OutboxRepository
	resolver   *settings.Resolver
	usageTopic string
}

func New(
	db *sqlx.DB,
	balances repository.BalancesRepository,
	usage repository.UsageRepository,
	outbox repository.OutboxRepository,
	resolver *settings.Resolver,
	usageTopic string,
) *Service {
	return &Service{
		db:         db,
		balances:   balances,
		usage:      usage,
		outbox:     outbox,
		resolver:   resolver,
		usageTopic: usageTopic,
	}
}

// GetBalance returns the account's balance, lazily creating the row with the
// plan's effective grant on first access.
func (s *Service) GetBalance(ctx context.Context, account *model.Account) (*model.CreditBalance, error) {
	b, err := s.balances.Get(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if b != nil {
		return b, nil
	}

	initial, err := s.initialGrant(ctx, account.PlanKey)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.balances.EnsureRow(ctx, tx, account.ID, initial); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b, err = s.balances.Get(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Debit resolves the effective cost of the operation, multiplies by quantity,
// and decrements the balance only when it covers the amount. On success one
// usage record and one outbox event are appended in the same transaction.
func (s *Service) Debit(ctx context.Context, account *model.Account, operationKey string, quantity int64, detail string) (*model.CreditBalance, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidAmount, quantity)
	}

	op, err := s.resolver.ToOperationType(operationKey)
	if err != nil {
		return nil, err
	}
	cost, err := s.resolver.CostOf(ctx, op)
	if err != nil {
		return nil, err
	}
	amount := cost * quantity

	initial, err := s.initialGrant(ctx, account.PlanKey)
	if err != nil {
		return nil, err
	}

	rec := model.UsageRecord{
		ID:        util.NewID(),
		AccountID: account.ID,
		Feature:   op,
		Credits:   amount,
		Detail:    detail,
	}
	payload, err := json.Marshal(model.UsageEvent{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		Feature:   op.String(),
		Credits:   amount,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal usage event: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.balances.EnsureRow(ctx, tx, account.ID, initial); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}

	// A zero effective cost still records usage but skips the decrement: the
	// driver reports rows changed, not rows matched, so a no-op UPDATE would
	// read back as an insufficient balance.
	if amount > 0 {
		ok, err := s.balances.DebitIfSufficient(ctx, tx, account.ID, amount)
		if err != nil {
			metrics.OperationsTotal.WithLabelValues(op.String(), "error").Inc()
			return nil, fmt.Errorf("debit balance: %w", err)
		}
		if !ok {
			metrics.OperationsTotal.WithLabelValues(op.String(), "insufficient").Inc()
			return nil, ErrInsufficientCredits
		}
	}

	if err := s.usage.Insert(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("insert usage record: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, repository.UsageAggregate, rec.ID, s.usageTopic, payload); err != nil {
		return nil, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	metrics.OperationsTotal.WithLabelValues(op.String(), "charged").Inc()

	b, err := s.balances.Get(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Credit increments the balance by a positive amount (grants, refunds,
// manual adjustments).
func (s *Service) Credit(ctx context.Context, account *model.Account, amount int64, reason string) (*model.CreditBalance, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	_ = reason // recorded by the caller's operation log

	initial, err := s.initialGrant(ctx, account.PlanKey)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.balances.EnsureRow(ctx, tx, account.ID, initial); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}
	if err := s.balances.Credit(ctx, tx, account.ID, amount); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b, err := s.balances.Get(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// SyncFromPlan reconciles the balance on plan renewal. Renewal RESETS the
// balance to the plan's effective grant; unused credits do not roll over.
func (s *Service) SyncFromPlan(ctx context.Context, account *model.Account) (*model.CreditBalance, error) {
	credits, err := s.resolver.EffectivePlanCredits(ctx)
	if err != nil {
		return nil, err
	}
	grant, ok := credits[account.PlanKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, account.PlanKey)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.balances.EnsureRow(ctx, tx, account.ID, grant); err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}
	if err := s.balances.ResetToGrant(ctx, tx, account.ID, grant); err != nil {
		return nil, fmt.Errorf("reset balance: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b, err := s.balances.Get(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// initialGrant is the lazily-created balance's starting value: the plan's
// effective grant, or zero when the account's plan cannot be resolved.
func (s *Service) initialGrant(ctx context.Context, planKey string) (int64, error) {
	credits, err := s.resolver.EffectivePlanCredits(ctx)
	if err != nil {
		return 0, err
	}
	return credits[planKey], nil
}
