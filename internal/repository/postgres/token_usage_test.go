package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/usage"
	"creditgate/internal/testsupport"
)

func insertRow(t *testing.T, repo *TokenUsageRepository, userID, modelID string, prompt, response int64, at time.Time, allowanceID *uuid.UUID) {
	t.Helper()
	err := repo.Insert(context.Background(), &usage.TokenUsageLog{
		Provider:             "anthropic",
		ModelID:              modelID,
		UserID:               userID,
		PromptTokens:         prompt,
		ResponseTokens:       response,
		LogDate:              at,
		SponsoredAllowanceID: allowanceID,
	})
	require.NoError(t, err)
}

func TestTokenUsageRepository_Insert(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewTokenUsageRepository(testDB.Tx())
	ctx := context.Background()

	row := &usage.TokenUsageLog{
		Provider:       "anthropic",
		ModelID:        "claude-3-sonnet",
		UserID:         "alice",
		PromptTokens:   100,
		ResponseTokens: 200,
		LogDate:        time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, row))
	assert.NotZero(t, row.ID, "id is assigned on insert")
}

func TestTokenUsageRepository_SumByModel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewTokenUsageRepository(testDB.Tx())
	ctx := context.Background()

	now := time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)
	window := usage.MonthWindow(now)
	allowanceID := uuid.New()

	// current month, personal
	insertRow(t, repo, "alice", "claude-3-sonnet", 100, 200, now, nil)
	insertRow(t, repo, "alice", "claude-3-sonnet", 10, 20, now.Add(time.Hour), nil)
	insertRow(t, repo, "alice", "gpt-4o", 5, 5, now, nil)
	// out of window
	insertRow(t, repo, "alice", "claude-3-sonnet", 9999, 9999, now.AddDate(0, -1, 0), nil)
	// other user
	insertRow(t, repo, "bob", "claude-3-sonnet", 1, 1, now, nil)
	// sponsored scope
	insertRow(t, repo, "alice", "claude-3-sonnet", 7, 7, now, &allowanceID)

	sums, err := repo.SumByModel(ctx, usage.SumFilter{
		UserID:   "alice",
		Window:   window,
		ModelIDs: []string{"claude-3-sonnet", "gpt-4o"},
		Scope:    allowance.Personal(),
	})
	require.NoError(t, err)
	require.Len(t, sums, 2)

	byModel := map[string]usage.ModelTokenSum{}
	for _, s := range sums {
		byModel[s.ModelID] = s
	}
	assert.Equal(t, int64(110), byModel["claude-3-sonnet"].PromptTokens)
	assert.Equal(t, int64(220), byModel["claude-3-sonnet"].ResponseTokens)
	assert.Equal(t, int64(5), byModel["gpt-4o"].PromptTokens)

	// model filter
	sums, err = repo.SumByModel(ctx, usage.SumFilter{
		UserID:   "alice",
		Window:   window,
		ModelIDs: []string{"gpt-4o"},
		Scope:    allowance.Personal(),
	})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "gpt-4o", sums[0].ModelID)

	// sponsored scope sees only its own partition
	sums, err = repo.SumByModel(ctx, usage.SumFilter{
		UserID:   "alice",
		Window:   window,
		ModelIDs: []string{"claude-3-sonnet"},
		Scope:    allowance.Sponsored(allowanceID),
	})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(7), sums[0].PromptTokens)

	// empty user id spans all users
	sums, err = repo.SumByModel(ctx, usage.SumFilter{
		Window:   window,
		ModelIDs: []string{"claude-3-sonnet"},
		Scope:    allowance.Personal(),
	})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(111), sums[0].PromptTokens)
}
