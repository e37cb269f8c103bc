package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/testsupport"
	"creditgate/pkg/errors"
)

func TestBaseSettingRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewBaseSettingRepository(testDB.Tx())
	ctx := context.Background()

	// missing keys are a configuration error, not a nil default
	_, err := repo.GetInt(ctx, "test_missing_key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	require.NoError(t, repo.Set(ctx, allowance.BaseCreditAllowanceKey, "1000"))

	got, err := repo.GetInt(ctx, allowance.BaseCreditAllowanceKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)

	// upsert replaces the value
	require.NoError(t, repo.Set(ctx, allowance.BaseCreditAllowanceKey, "2500"))
	got, err = repo.GetInt(ctx, allowance.BaseCreditAllowanceKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got)

	require.NoError(t, repo.Set(ctx, "test_garbage", "not-a-number"))
	_, err = repo.GetInt(ctx, "test_garbage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
