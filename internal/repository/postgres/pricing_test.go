package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/pricing"
	"creditgate/internal/testsupport"
)

func testPricing(id, provider string) *pricing.ModelPricing {
	return &pricing.ModelPricing{
		ID:                id,
		Provider:          provider,
		Name:              id,
		InputCostCredits:  3,
		PerInputTokens:    1000,
		OutputCostCredits: 15,
		PerOutputTokens:   1000,
	}
}

func TestModelPricingRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewModelPricingRepository(testDB.Tx())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testPricing("claude-3-sonnet", "anthropic")))
	require.NoError(t, repo.Create(ctx, testPricing("gpt-4o", "openai")))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 2)

	byProvider, err := repo.GetByProvider(ctx, "anthropic")
	require.NoError(t, err)
	require.Len(t, byProvider, 1)
	assert.Equal(t, "claude-3-sonnet", byProvider[0].ID)
	assert.Equal(t, int64(3), byProvider[0].InputCostCredits)
	assert.Equal(t, int64(1000), byProvider[0].PerInputTokens)
}
