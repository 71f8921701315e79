package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/creditwise/credit-gateway/internal/cache"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverridesRepo struct {
	featureCosts map[string]int64
	planCredits  map[string]int64
	listCalls    int
	applyErr     error
}

var _ repository.OverridesRepository = (*fakeOverridesRepo)(nil)

func newFakeOverridesRepo() *fakeOverridesRepo {
	return &fakeOverridesRepo{
		featureCosts: map[string]int64{},
		planCredits:  map[string]int64{},
	}
}

func (f *fakeOverridesRepo) ListFeatureCosts(ctx context.Context) ([]model.FeatureCostOverride, error) {
	f.listCalls++
	var rows []model.FeatureCostOverride
	for k, v := range f.featureCosts {
		rows = append(rows, model.FeatureCostOverride{Feature: k, Cost: v})
	}
	return rows, nil
}

func (f *fakeOverridesRepo) ListPlanCredits(ctx context.Context) ([]model.PlanCreditOverride, error) {
	f.listCalls++
	var rows []model.PlanCreditOverride
	for k, v := range f.planCredits {
		rows = append(rows, model.PlanCreditOverride{PlanKey: k, Credits: v})
	}
	return rows, nil
}

func (f *fakeOverridesRepo) UpsertFeatureCost(ctx context.Context, tx *sqlx.Tx, feature string, cost int64) error {
	f.featureCosts[feature] = cost
	return nil
}

func (f *fakeOverridesRepo) UpsertPlanCredit(ctx context.Context, tx *sqlx.Tx, planKey string, credits int64) error {
	f.planCredits[planKey] = credits
	return nil
}

func (f *fakeOverridesRepo) Apply(ctx context.Context, featureCosts, planCredits map[string]int64) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	for k, v := range featureCosts {
		f.featureCosts[k] = v
	}
	for k, v := range planCredits {
		f.planCredits[k] = v
	}
	return nil
}

type fakePlansRepo struct {
	plans []model.Plan
}

var _ repository.PlansRepository = (*fakePlansRepo)(nil)

func (f *fakePlansRepo) List(ctx context.Context) ([]model.Plan, error) { return f.plans, nil }
func (f *fakePlansRepo) ListActive(ctx context.Context) ([]model.Plan, error) {
	return f.plans, nil
}
func (f *fakePlansRepo) GetByKey(ctx context.Context, key string) (*model.Plan, error) {
	for i := range f.plans {
		if f.plans[i].Key == key {
			return &f.plans[i], nil
		}
	}
	return nil, nil
}

func newResolver(t *testing.T) (*Resolver, *fakeOverridesRepo) {
	t.Helper()
	overrides := newFakeOverridesRepo()
	plans := &fakePlansRepo{plans: []model.Plan{
		{Key: "free", BaseCredits: 25},
		{Key: "pro", BaseCredits: 500},
	}}
	r := NewResolver(overrides, plans, cache.New[map[string]int64](16), time.Minute)
	return r, overrides
}

func TestEffectiveFeatureCostsDefaults(t *testing.T) {
	r, _ := newResolver(t)

	costs, err := r.EffectiveFeatureCosts(context.Background())
	require.NoError(t, err)

	want := model.DefaultFeatureCosts()
	assert.Equal(t, want, costs)
	for _, op := range model.AllOperationTypes() {
		_, ok := costs[op]
		assert.True(t, ok, "every known key must appear: %s", op)
	}
}

func TestEffectiveFeatureCostsOverrideWins(t *testing.T) {
	r, overrides := newResolver(t)
	overrides.featureCosts[model.OpTextChat.String()] = 3

	costs, err := r.EffectiveFeatureCosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), costs[model.OpTextChat])
	assert.Equal(t, int64(5), costs[model.OpImageGeneration])
}

func TestEffectiveFeatureCostsRejectsUnknownOverride(t *testing.T) {
	r, overrides := newResolver(t)
	overrides.featureCosts["ai_mind_reading"] = 100

	_, err := r.EffectiveFeatureCosts(context.Background())
	require.ErrorIs(t, err, model.ErrUnrecognizedOperationType)
}

func TestEffectiveFeatureCostsCached(t *testing.T) {
	r, overrides := newResolver(t)

	_, err := r.EffectiveFeatureCosts(context.Background())
	require.NoError(t, err)
	_, err = r.EffectiveFeatureCosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, overrides.listCalls, "second read should come from cache")
}

func TestReadYourWrite(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	costs, err := r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), costs[model.OpTextChat])

	// TTL has not elapsed; the write must still be visible immediately.
	require.NoError(t, r.UpsertFeatureCost(ctx, model.OpTextChat, 3))

	costs, err = r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), costs[model.OpTextChat])
}

func TestEffectivePlanCredits(t *testing.T) {
	r, overrides := newResolver(t)
	ctx := context.Background()

	credits, err := r.EffectivePlanCredits(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"free": 25, "pro": 500}, credits)

	require.NoError(t, r.UpsertPlanCredit(ctx, "pro", 750))
	credits, err = r.EffectivePlanCredits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(750), credits["pro"])

	overrides.planCredits["enterprise"] = 9000
	r.Invalidate()
	_, err = r.EffectivePlanCredits(ctx)
	require.ErrorIs(t, err, ErrMissingDefault)
}

func TestApplyOverridesInvalidatesBothTables(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	// Prime both cached tables.
	_, err := r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	_, err = r.EffectivePlanCredits(ctx)
	require.NoError(t, err)

	err = r.ApplyOverrides(ctx,
		map[model.OperationType]int64{model.OpTextChat: 4},
		map[string]int64{"pro": 750},
	)
	require.NoError(t, err)

	costs, err := r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), costs[model.OpTextChat])

	credits, err := r.EffectivePlanCredits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(750), credits["pro"])
}

func TestApplyOverridesFailureKeepsCache(t *testing.T) {
	r, overrides := newResolver(t)
	ctx := context.Background()

	_, err := r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	listsBefore := overrides.listCalls

	overrides.applyErr = errors.New("db down")
	err = r.ApplyOverrides(ctx, map[model.OperationType]int64{model.OpTextChat: 4}, nil)
	require.Error(t, err)

	// Nothing persisted, nothing invalidated: the cached table still serves.
	costs, err := r.EffectiveFeatureCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), costs[model.OpTextChat])
	assert.Equal(t, listsBefore, overrides.listCalls)
}

func TestCostOf(t *testing.T) {
	r, _ := newResolver(t)

	cost, err := r.CostOf(context.Background(), model.OpImageGeneration)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cost)
}

func TestCachedTableIsCopied(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	first, err := r.EffectivePlanCredits(ctx)
	require.NoError(t, err)
	first["free"] = 999999 // caller mutation must not poison the cache

	second, err := r.EffectivePlanCredits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25), second["free"])
}
