package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "creditgate/pkg/errors"
)

func TestLocalLimiter_BurstThenThrottle(t *testing.T) {
	l := NewLocalLimiter(ProviderNameAnthropic, 60, 2)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "burst of 2 is spent")
	assert.Equal(t, float64(60), l.Limit())
}

func TestLocalLimiter_DefaultBurst(t *testing.T) {
	// burst <= 0 derives ~10% of the per-minute rate, at least 1
	l := NewLocalLimiter(ProviderNameOpenAI, 5, 0)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLocalLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLocalLimiter(ProviderNameAnthropic, 0.01, 1)
	require.NoError(t, l.Wait(context.Background()), "first request rides the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err, "refill is far slower than the deadline")
}

func TestNoOpLimiter(t *testing.T) {
	l := NewNoOpLimiter()
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
	assert.Zero(t, l.Limit())
}

func TestRateLimitError_Unwrap(t *testing.T) {
	err := &RateLimitError{Provider: ProviderNameAnthropic, Limit: 60, Err: context.DeadlineExceeded}
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrRateLimitExceeded))
}

type namedProvider struct {
	Provider
	name ProviderName
}

func (p namedProvider) Name() ProviderName { return p.name }

func TestProviderRegistry(t *testing.T) {
	r := NewProviderRegistry()

	anthropic := namedProvider{name: ProviderNameAnthropic}
	require.NoError(t, r.Register(anthropic))
	require.NoError(t, r.Register(namedProvider{name: ProviderNameOpenAI}))

	got, err := r.Get(ProviderNameAnthropic)
	require.NoError(t, err)
	assert.Equal(t, ProviderNameAnthropic, got.Name())

	_, err = r.Get(ProviderNameGemini)
	require.Error(t, err)

	err = r.Register(namedProvider{name: ProviderNameAnthropic})
	require.Error(t, err, "duplicate registration")

	err = r.Register(nil)
	require.Error(t, err)

	assert.Len(t, r.List(), 2)
}
