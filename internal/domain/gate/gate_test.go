package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/gate"
	"creditgate/internal/domain/ledger"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/domain/usage"
	"creditgate/internal/testsupport"
	pkgerrors "creditgate/pkg/errors"
)

var testNow = time.Date(2026, time.February, 14, 12, 0, 0, 0, time.UTC)

type gateFixtures struct {
	gate      *gate.Gate
	sponsored *testsupport.MemSponsoredRepo
	usage     *testsupport.MemUsageRepo
}

func newGate(t *testing.T, baseCredits string) gateFixtures {
	t.Helper()

	pricingRepo := &testsupport.MemPricingRepo{Models: []pricing.ModelPricing{
		{
			ID: "claude-3", Provider: "anthropic", Name: "Claude 3",
			InputCostCredits: 1, PerInputTokens: 100,
			OutputCostCredits: 1, PerOutputTokens: 100,
		},
		{ID: "free-model", Provider: "anthropic", Name: "Free"},
	}}
	settings := map[string]string{}
	if baseCredits != "" {
		settings[allowance.BaseCreditAllowanceKey] = baseCredits
	}

	f := gateFixtures{
		sponsored: &testsupport.MemSponsoredRepo{},
		usage:     &testsupport.MemUsageRepo{},
	}
	resolver := allowance.NewResolver(
		&testsupport.MemGroupRepo{},
		&testsupport.MemSettingRepo{Values: settings},
		f.sponsored,
	)
	l := ledger.NewLedger(
		pricing.NewCatalog(pricingRepo),
		resolver,
		usage.NewAggregator(f.usage),
		f.usage,
	).WithClock(func() time.Time { return testNow })
	f.gate = gate.New(l)
	return f
}

// spend writes a usage row worth prompt+response tokens against the scope.
func (f gateFixtures) spend(t *testing.T, userID string, tokens int64, sa *allowance.SponsoredAllowance, at time.Time) {
	t.Helper()
	row := &usage.TokenUsageLog{
		Provider: "anthropic", ModelID: "claude-3", UserID: userID,
		PromptTokens: tokens, ResponseTokens: tokens, LogDate: at,
	}
	if sa != nil {
		row.SponsoredAllowanceID = &sa.ID
	}
	require.NoError(t, f.usage.Insert(context.Background(), row))
}

func TestGate_AllowsUnderLimit(t *testing.T) {
	f := newGate(t, "1000")

	err := f.gate.CheckLimits(context.Background(), "claude-3", ledger.User{ID: "alice"}, "")
	require.NoError(t, err)
}

func TestGate_FreeModelPassesWithExhaustedBalance(t *testing.T) {
	f := newGate(t, "10")
	f.spend(t, "alice", 100000, nil, testNow)

	err := f.gate.CheckLimits(context.Background(), "free-model", ledger.User{ID: "alice"}, "")
	require.NoError(t, err, "free models are never gated")
}

func TestGate_DeniesExhaustedMonthly(t *testing.T) {
	f := newGate(t, "10")
	// 500+500 tokens at 1cr/100 each side = 10 credits, exactly exhausting
	f.spend(t, "alice", 500, nil, testNow)

	err := f.gate.CheckLimits(context.Background(), "claude-3", ledger.User{ID: "alice"}, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrLimitExceeded))

	var monthly *pkgerrors.MonthlyLimitExceededError
	require.True(t, pkgerrors.As(err, &monthly))
	assert.Empty(t, monthly.AllowanceName)
	assert.Equal(t, int64(10), monthly.MaxCredits)
	assert.Equal(t, usage.MonthWindow(testNow).End, monthly.ResetsAt)
}

func TestGate_LastMonthSpendDoesNotDeny(t *testing.T) {
	f := newGate(t, "10")
	f.spend(t, "alice", 100000, nil, testNow.AddDate(0, -1, 0))

	err := f.gate.CheckLimits(context.Background(), "claude-3", ledger.User{ID: "alice"}, "")
	require.NoError(t, err)
}

func TestGate_TotalPoolCheckedBeforeMonthly(t *testing.T) {
	f := newGate(t, "1000")
	ctx := context.Background()

	monthly := int64(10)
	sa := &allowance.SponsoredAllowance{
		Name: "conference", SponsorID: "acme",
		TotalCreditLimit: 100, MonthlyCreditLimit: &monthly,
		CreatedAt: testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, f.sponsored.Create(ctx, sa))

	// one user's historic spend drains the shared pool and
	// simultaneously exceeds alice's monthly slice
	f.spend(t, "bob", 5000, sa, testNow.AddDate(0, 0, -20))
	f.spend(t, "alice", 5000, sa, testNow)

	err := f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "alice"}, "conference")
	require.Error(t, err)

	var total *pkgerrors.TotalLimitExceededError
	require.True(t, pkgerrors.As(err, &total), "total pool exhaustion wins over monthly")
	assert.Equal(t, "conference", total.AllowanceName)
}

func TestGate_SponsoredMonthlySlice(t *testing.T) {
	f := newGate(t, "1000")
	ctx := context.Background()

	monthly := int64(10)
	sa := &allowance.SponsoredAllowance{
		Name: "conference", SponsorID: "acme",
		TotalCreditLimit: 100000, MonthlyCreditLimit: &monthly,
		CreatedAt: testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, f.sponsored.Create(ctx, sa))
	f.spend(t, "alice", 500, sa, testNow)

	err := f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "alice"}, "conference")
	require.Error(t, err)

	var monthlyErr *pkgerrors.MonthlyLimitExceededError
	require.True(t, pkgerrors.As(err, &monthlyErr))
	assert.Equal(t, "conference", monthlyErr.AllowanceName)

	// bob's slice is his own
	err = f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "bob"}, "conference")
	require.NoError(t, err)
}

func TestGate_UnboundedSponsoredSkipsMonthlyCheck(t *testing.T) {
	f := newGate(t, "1000")
	ctx := context.Background()

	sa := &allowance.SponsoredAllowance{
		Name: "unlimited", SponsorID: "acme",
		TotalCreditLimit: 100000, CreatedAt: testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, f.sponsored.Create(ctx, sa))
	f.spend(t, "alice", 100000, sa, testNow)

	err := f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "alice"}, "unlimited")
	require.NoError(t, err, "no monthly cap means per-user spend never denies")
}

func TestGate_PersonalSpendDoesNotDrainSponsoredScope(t *testing.T) {
	f := newGate(t, "10")
	ctx := context.Background()

	sa := &allowance.SponsoredAllowance{
		Name: "conference", SponsorID: "acme",
		TotalCreditLimit: 100000, CreatedAt: testNow.AddDate(0, -1, 0),
	}
	require.NoError(t, f.sponsored.Create(ctx, sa))

	f.spend(t, "alice", 100000, nil, testNow)

	require.Error(t, f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "alice"}, ""))
	require.NoError(t, f.gate.CheckLimits(ctx, "claude-3", ledger.User{ID: "alice"}, "conference"))
}

func TestGate_UnknownModel(t *testing.T) {
	f := newGate(t, "1000")

	err := f.gate.CheckLimits(context.Background(), "no-such-model", ledger.User{ID: "alice"}, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrAmbiguousModel))
}

func TestGate_UnknownAllowance(t *testing.T) {
	f := newGate(t, "1000")

	err := f.gate.CheckLimits(context.Background(), "claude-3", ledger.User{ID: "alice"}, "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}
