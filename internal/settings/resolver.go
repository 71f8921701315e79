package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creditwise/credit-gateway/internal/cache"
	"github.com/creditwise/credit-gateway/internal/metrics"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
)

// Fixed cache keys for the two resolved tables.
const (
	featureCostsCacheKey = "settings:feature_costs"
	planCreditsCacheKey  = "settings:plan_credits"
)

// ErrMissingDefault means a key in the closed set has neither an override nor
// a compiled-in default. That is a configuration-integrity defect, never a
// silent omission.
var ErrMissingDefault = errors.New("missing default for known key")

// Resolver produces the effective feature-cost and plan-credit tables by
// overlaying administrator overrides from storage onto compiled-in defaults.
// Resolved tables live in the shared TTL cache; a write through one of the
// Upsert methods invalidates synchronously so administrators read their own
// writes before the TTL runs out.
type Resolver struct {
	overrides repository.OverridesRepository
	plans     repository.PlansRepository
	cache     *cache.Cache[map[string]int64]
	ttl       time.Duration
}

func NewResolver(
	overrides repository.OverridesRepository,
	plans repository.PlansRepository,
	c *cache.Cache[map[string]int64],
	ttl time.Duration,
) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{overrides: overrides, plans: plans, cache: c, ttl: ttl}
}

// ToOperationType converts a feature key into its enumerant; keys outside the
// closed set fail with model.ErrUnrecognizedOperationType.
func (r *Resolver) ToOperationType(key string) (model.OperationType, error) {
	return model.ParseOperationType(key)
}

// EffectiveFeatureCosts returns the cost of every known operation type.
// Override rows win over the compiled-in defaults; every key in the closed
// set appears in the result.
func (r *Resolver) EffectiveFeatureCosts(ctx context.Context) (map[model.OperationType]int64, error) {
	if raw, ok := r.cache.Get(featureCostsCacheKey); ok {
		metrics.SettingsCacheTotal.WithLabelValues("hit").Inc()
		return toTypedCosts(raw)
	}
	metrics.SettingsCacheTotal.WithLabelValues("miss").Inc()

	costs := model.DefaultFeatureCosts()
	rows, err := r.overrides.ListFeatureCosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feature cost overrides: %w", err)
	}
	for _, row := range rows {
		op, err := model.ParseOperationType(row.Feature)
		if err != nil {
			// An override row outside the closed set means the write-side
			// validation was bypassed; surface it, don't skip it.
			return nil, fmt.Errorf("feature cost override: %w", err)
		}
		costs[op] = row.Cost
	}

	for _, op := range model.AllOperationTypes() {
		if _, ok := costs[op]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDefault, op)
		}
	}

	r.cache.Set(featureCostsCacheKey, toRawCosts(costs), r.ttl)
	return costs, nil
}

// EffectivePlanCredits returns the credit grant of every plan, override rows
// winning over each plan's base grant.
func (r *Resolver) EffectivePlanCredits(ctx context.Context) (map[string]int64, error) {
	if raw, ok := r.cache.Get(planCreditsCacheKey); ok {
		metrics.SettingsCacheTotal.WithLabelValues("hit").Inc()
		return cloneRaw(raw), nil
	}
	metrics.SettingsCacheTotal.WithLabelValues("miss").Inc()

	plans, err := r.plans.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	credits := make(map[string]int64, len(plans))
	for _, p := range plans {
		credits[p.Key] = p.BaseCredits
	}

	rows, err := r.overrides.ListPlanCredits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plan credit overrides: %w", err)
	}
	for _, row := range rows {
		if _, ok := credits[row.PlanKey]; !ok {
			return nil, fmt.Errorf("%w: plan %q", ErrMissingDefault, row.PlanKey)
		}
		credits[row.PlanKey] = row.Credits
	}

	r.cache.Set(planCreditsCacheKey, cloneRaw(credits), r.ttl)
	return credits, nil
}

// CostOf resolves the effective cost of one operation type.
func (r *Resolver) CostOf(ctx context.Context, op model.OperationType) (int64, error) {
	costs, err := r.EffectiveFeatureCosts(ctx)
	if err != nil {
		return 0, err
	}
	cost, ok := costs[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingDefault, op)
	}
	return cost, nil
}

// UpsertFeatureCost persists one override and invalidates the cached table so
// the next read observes the new value.
func (r *Resolver) UpsertFeatureCost(ctx context.Context, op model.OperationType, cost int64) error {
	if err := r.overrides.UpsertFeatureCost(ctx, nil, op.String(), cost); err != nil {
		return fmt.Errorf("upsert feature cost: %w", err)
	}
	r.cache.Delete(featureCostsCacheKey)
	return nil
}

// UpsertPlanCredit persists one plan grant override and invalidates the
// cached table.
func (r *Resolver) UpsertPlanCredit(ctx context.Context, planKey string, credits int64) error {
	if err := r.overrides.UpsertPlanCredit(ctx, nil, planKey, credits); err != nil {
		return fmt.Errorf("upsert plan credit: %w", err)
	}
	r.cache.Delete(planCreditsCacheKey)
	return nil
}

// ApplyOverrides persists a batch of feature-cost and plan-credit overrides in
// one transaction, then invalidates both cached tables. A failure on any key
// persists none of them.
func (r *Resolver) ApplyOverrides(ctx context.Context, costs map[model.OperationType]int64, planCredits map[string]int64) error {
	raw := make(map[string]int64, len(costs))
	for op, c := range costs {
		raw[op.String()] = c
	}
	if err := r.overrides.Apply(ctx, raw, planCredits); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	r.Invalidate()
	return nil
}

// Invalidate drops both resolved tables from the cache.
func (r *Resolver) Invalidate() {
	r.cache.Delete(featureCostsCacheKey)
	r.cache.Delete(planCreditsCacheKey)
}

// Cached values are stored and returned as copies: nothing outside the cache
// may hold a reference to what it stores.

func toRawCosts(costs map[model.OperationType]int64) map[string]int64 {
	raw := make(map[string]int64, len(costs))
	for op, c := range costs {
		raw[op.String()] = c
	}
	return raw
}

func toTypedCosts(raw map[string]int64) (map[model.OperationType]int64, error) {
	costs := make(map[model.OperationType]int64, len(raw))
	for k, c := range raw {
		op, err := model.ParseOperationType(k)
		if err != nil {
			return nil, err
		}
		costs[op] = c
	}
	return costs, nil
}

func cloneRaw(raw map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
