package allowance_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/testsupport"
	pkgerrors "creditgate/pkg/errors"
)

func newResolver(settings map[string]string) (*allowance.Resolver, *testsupport.MemGroupRepo, *testsupport.MemSponsoredRepo) {
	groups := &testsupport.MemGroupRepo{}
	sponsored := &testsupport.MemSponsoredRepo{}
	r := allowance.NewResolver(groups, &testsupport.MemSettingRepo{Values: settings}, sponsored)
	return r, groups, sponsored
}

func TestResolver_MaxCredits_BaseOnly(t *testing.T) {
	r, _, _ := newResolver(map[string]string{allowance.BaseCreditAllowanceKey: "1000"})

	limit, err := r.MaxCredits(context.Background(), "alice", allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), limit.Credits)
	assert.False(t, limit.Unbounded)
}

func TestResolver_MaxCredits_GroupsAreAdditive(t *testing.T) {
	r, groups, _ := newResolver(map[string]string{allowance.BaseCreditAllowanceKey: "1000"})

	ctx := context.Background()
	g1 := &allowance.CreditGroup{Name: "research", MaxCredit: 2000}
	g2 := &allowance.CreditGroup{Name: "beta", MaxCredit: 500}
	require.NoError(t, groups.Create(ctx, g1))
	require.NoError(t, groups.Create(ctx, g2))
	require.NoError(t, groups.AddUser(ctx, g1.ID, "alice"))
	require.NoError(t, groups.AddUser(ctx, g2.ID, "alice"))

	limit, err := r.MaxCredits(ctx, "alice", allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(3500), limit.Credits)

	// membership is per user
	limit, err = r.MaxCredits(ctx, "bob", allowance.Personal())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), limit.Credits)
}

func TestResolver_MaxCredits_MissingBaseSetting(t *testing.T) {
	r, _, _ := newResolver(map[string]string{})

	_, err := r.MaxCredits(context.Background(), "alice", allowance.Personal())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConfiguration))
}

func TestResolver_MaxCredits_SponsoredMonthly(t *testing.T) {
	r, _, sponsored := newResolver(map[string]string{allowance.BaseCreditAllowanceKey: "1000"})

	monthly := int64(500)
	sa := &allowance.SponsoredAllowance{
		Name: "conference", SponsorID: "acme",
		TotalCreditLimit: 10000, MonthlyCreditLimit: &monthly,
	}
	require.NoError(t, sponsored.Create(context.Background(), sa))

	// sponsored scope ignores base and groups entirely
	limit, err := r.MaxCredits(context.Background(), "alice", allowance.Sponsored(sa.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(500), limit.Credits)
	assert.False(t, limit.Unbounded)
}

func TestResolver_MaxCredits_SponsoredUnbounded(t *testing.T) {
	r, _, sponsored := newResolver(nil)

	sa := &allowance.SponsoredAllowance{Name: "unlimited", SponsorID: "acme", TotalCreditLimit: 10000}
	require.NoError(t, sponsored.Create(context.Background(), sa))

	limit, err := r.MaxCredits(context.Background(), "alice", allowance.Sponsored(sa.ID))
	require.NoError(t, err)
	assert.True(t, limit.Unbounded, "nil monthly limit means no per-user cap")
}

func TestResolver_SponsoredByName_NotFound(t *testing.T) {
	r, _, _ := newResolver(nil)

	_, err := r.SponsoredByName(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}

func TestScope(t *testing.T) {
	p := allowance.Personal()
	assert.False(t, p.IsSponsored())
	_, ok := p.AllowanceID()
	assert.False(t, ok)
	assert.Equal(t, "personal", p.String())

	id := uuid.New()
	s := allowance.Sponsored(id)
	assert.True(t, s.IsSponsored())
	got, ok := s.AllowanceID()
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestAdmin_CreateSponsoredAllowance_RequiresPositiveTotal(t *testing.T) {
	admin := allowance.NewAdmin(&testsupport.MemSponsoredRepo{}, &testsupport.MemGroupRepo{})

	_, err := admin.CreateSponsoredAllowance(context.Background(), "acme", "bad", nil, 0, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConfiguration))
}

func TestAdmin_Ref_Resolution(t *testing.T) {
	repo := &testsupport.MemSponsoredRepo{}
	admin := allowance.NewAdmin(repo, &testsupport.MemGroupRepo{})
	ctx := context.Background()

	sa, err := admin.CreateSponsoredAllowance(ctx, "acme", "conference", []string{"m1"}, 1000, nil)
	require.NoError(t, err)

	byID, err := admin.GetSponsoredAllowance(ctx, allowance.RefByID(sa.ID))
	require.NoError(t, err)
	assert.Equal(t, "conference", byID.Name)

	byName, err := admin.GetSponsoredAllowance(ctx, allowance.RefByName("conference"))
	require.NoError(t, err)
	assert.Equal(t, sa.ID, byName.ID)

	// both set is a caller bug
	ref := allowance.RefByID(sa.ID)
	ref.Name = "conference"
	_, err = admin.GetSponsoredAllowance(ctx, ref)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConfiguration))

	// neither set is too
	_, err = admin.GetSponsoredAllowance(ctx, allowance.Ref{})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConfiguration))
}

func TestAdmin_UpdateSponsoredAllowance(t *testing.T) {
	repo := &testsupport.MemSponsoredRepo{}
	admin := allowance.NewAdmin(repo, &testsupport.MemGroupRepo{})
	ctx := context.Background()

	sa, err := admin.CreateSponsoredAllowance(ctx, "acme", "conference", []string{"m1"}, 1000, nil)
	require.NoError(t, err)

	newTotal := int64(5000)
	err = admin.UpdateSponsoredAllowance(ctx, allowance.RefByName("conference"), allowance.SponsoredUpdate{
		TotalCreditLimit: &newTotal,
	})
	require.NoError(t, err)

	got, err := admin.GetSponsoredAllowance(ctx, allowance.RefByID(sa.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.TotalCreditLimit)
	assert.Equal(t, []string{"m1"}, got.Models, "nil models in update keeps the current set")
}

func TestAdmin_DeleteSponsoredAllowance(t *testing.T) {
	repo := &testsupport.MemSponsoredRepo{}
	admin := allowance.NewAdmin(repo, &testsupport.MemGroupRepo{})
	ctx := context.Background()

	sa, err := admin.CreateSponsoredAllowance(ctx, "acme", "conference", nil, 1000, nil)
	require.NoError(t, err)

	require.NoError(t, admin.DeleteSponsoredAllowance(ctx, allowance.RefByID(sa.ID)))

	_, err = admin.GetSponsoredAllowance(ctx, allowance.RefByID(sa.ID))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}

func TestAdmin_AddUserToGroup(t *testing.T) {
	groups := &testsupport.MemGroupRepo{}
	admin := allowance.NewAdmin(&testsupport.MemSponsoredRepo{}, groups)
	ctx := context.Background()

	_, err := admin.CreateCreditGroup(ctx, "research", 2000, "research team")
	require.NoError(t, err)

	require.NoError(t, admin.AddUserToGroup(ctx, "research", "alice"))

	sum, err := groups.SumUserAllowance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sum)

	err = admin.AddUserToGroup(ctx, "missing", "alice")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}
