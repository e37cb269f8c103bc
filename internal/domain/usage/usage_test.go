package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/domain/usage"
	"creditgate/internal/testsupport"
	pkgerrors "creditgate/pkg/errors"
)

func TestMonthWindow(t *testing.T) {
	now := time.Date(2026, time.February, 14, 13, 45, 0, 0, time.UTC)
	w := usage.MonthWindow(now)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC), w.End)
}

func TestMonthWindow_DecemberRollsIntoNewYear(t *testing.T) {
	now := time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)
	w := usage.MonthWindow(now)

	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC), w.End)
}

func TestLifetimeWindow(t *testing.T) {
	created := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	w := usage.LifetimeWindow(created, now)
	assert.Equal(t, created, w.Start)
	assert.Equal(t, now, w.End)
}

func testModel(id string, inCost, perIn, outCost, perOut int64) pricing.ModelPricing {
	return pricing.ModelPricing{
		ID:                id,
		Provider:          "anthropic",
		InputCostCredits:  inCost,
		PerInputTokens:    perIn,
		OutputCostCredits: outCost,
		PerOutputTokens:   perOut,
	}
}

func insertUsage(t *testing.T, repo *testsupport.MemUsageRepo, userID, modelID string, prompt, response int64, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), &usage.TokenUsageLog{
		Provider:       "anthropic",
		ModelID:        modelID,
		UserID:         userID,
		PromptTokens:   prompt,
		ResponseTokens: response,
		LogDate:        at,
	}))
}

func TestAggregator_SumUsage(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	model := testModel("m1", 3, 1000, 15, 1000)

	// 1000 prompt + 1000 response = 18 credits
	insertUsage(t, repo, "alice", "m1", 1000, 1000, now)

	spent, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(18), spent)
}

func TestAggregator_SumUsage_TruncatesTowardZero(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)

	// 1 credit per 3 tokens: 8 tokens cost 2.666..., one row only
	model := testModel("m1", 1, 3, 0, 1)
	insertUsage(t, repo, "alice", "m1", 8, 0, now)

	spent, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(2), spent, "fractional credits truncate toward zero")
}

func TestAggregator_SumUsage_AccumulatesBeforeTruncating(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)

	// two models at 0.9 credits each: per-row truncation would yield 0,
	// the required single final truncation yields 1
	m1 := testModel("m1", 9, 10, 0, 1)
	m2 := testModel("m2", 9, 10, 0, 1)
	insertUsage(t, repo, "alice", "m1", 1, 0, now)
	insertUsage(t, repo, "alice", "m2", 1, 0, now)

	spent, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{m1, m2}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(1), spent)
}

func TestAggregator_SumUsage_RespectsWindow(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	model := testModel("m1", 1, 1, 0, 1)

	insertUsage(t, repo, "alice", "m1", 10, 0, now)
	insertUsage(t, repo, "alice", "m1", 99, 0, now.AddDate(0, -1, 0)) // last month

	spent, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(10), spent)
}

func TestAggregator_SumUsage_ScopesArePartitioned(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	model := testModel("m1", 1, 1, 0, 1)

	saID := allowance.Sponsored(uuid.New())
	id, _ := saID.AllowanceID()

	insertUsage(t, repo, "alice", "m1", 10, 0, now)
	require.NoError(t, repo.Insert(context.Background(), &usage.TokenUsageLog{
		Provider: "anthropic", ModelID: "m1", UserID: "alice",
		PromptTokens: 500, LogDate: now, SponsoredAllowanceID: &id,
	}))

	personal, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(10), personal, "personal scope must not see sponsored rows")

	sponsored, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, saID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sponsored, "sponsored scope must not see personal rows")
}

func TestAggregator_SumUsage_EmptyModelSet(t *testing.T) {
	agg := usage.NewAggregator(&testsupport.MemUsageRepo{})

	spent, err := agg.SumUsage(context.Background(), "alice",
		usage.MonthWindow(time.Now()), nil, allowance.Personal())
	require.NoError(t, err)
	assert.Zero(t, spent)
}

func TestAggregator_SumUsage_CrossUser(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	model := testModel("m1", 1, 1, 0, 1)

	insertUsage(t, repo, "alice", "m1", 10, 0, now)
	insertUsage(t, repo, "bob", "m1", 20, 0, now)

	spent, err := agg.SumUsage(context.Background(), "", usage.MonthWindow(now),
		[]pricing.ModelPricing{model}, allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(30), spent, "empty user id sums across all users")
}

func TestAggregator_SumUsage_UnknownModelRow(t *testing.T) {
	repo := &testsupport.MemUsageRepo{}
	agg := usage.NewAggregator(repo)

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)

	// both ids land in the filter, but the pricing map only knows m1
	insertUsage(t, repo, "alice", "m2", 10, 0, now)

	_, err := agg.SumUsage(context.Background(), "alice", usage.MonthWindow(now),
		[]pricing.ModelPricing{testModel("m1", 1, 1, 0, 1), {ID: "m2"}}, allowance.Personal())
	require.NoError(t, err)

	// a row whose model is missing from the priced set is a fault
	repo2 := &testsupport.MemUsageRepo{}
	insertUsage(t, repo2, "alice", "m1", 10, 0, now)
	rows, err := repo2.SumByModel(context.Background(), usage.SumFilter{
		Window: usage.MonthWindow(now), Scope: allowance.Personal(),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = usage.NewAggregator(badRepo{rows: rows}).SumUsage(context.Background(), "alice",
		usage.MonthWindow(now), []pricing.ModelPricing{{ID: "other"}}, allowance.Personal())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrAmbiguousModel))
}

// badRepo returns fixed rows regardless of filter, simulating a pricing row
// whose id changed between query and pricing.
type badRepo struct {
	rows []usage.ModelTokenSum
}

func (b badRepo) Insert(context.Context, *usage.TokenUsageLog) error { return nil }

func (b badRepo) SumByModel(context.Context, usage.SumFilter) ([]usage.ModelTokenSum, error) {
	return b.rows, nil
}
