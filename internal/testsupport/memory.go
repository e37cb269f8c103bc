package testsupport

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/domain/usage"
	"creditgate/pkg/errors"
)

// In-memory repository implementations for unit tests. They honor the same
// contracts as the postgres repositories so domain services can be tested
// without a database.

// MemPricingRepo implements pricing.Repository in memory.
type MemPricingRepo struct {
	mu     sync.Mutex
	Models []pricing.ModelPricing
}

var _ pricing.Repository = (*MemPricingRepo)(nil)

func (r *MemPricingRepo) Create(_ context.Context, m *pricing.ModelPricing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Models = append(r.Models, *m)
	return nil
}

func (r *MemPricingRepo) GetAll(context.Context) ([]pricing.ModelPricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pricing.ModelPricing, len(r.Models))
	copy(out, r.Models)
	return out, nil
}

func (r *MemPricingRepo) GetByProvider(_ context.Context, provider string) ([]pricing.ModelPricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pricing.ModelPricing
	for _, m := range r.Models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out, nil
}

// MemSettingRepo implements allowance.SettingRepository in memory.
type MemSettingRepo struct {
	Values map[string]string
}

var _ allowance.SettingRepository = (*MemSettingRepo)(nil)

func (r *MemSettingRepo) GetInt(_ context.Context, key string) (int64, error) {
	raw, ok := r.Values[key]
	if !ok {
		return 0, errors.Wrapf(errors.ErrConfiguration, "setting %q is not defined", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrConfiguration, "setting %q is not an integer: %q", key, raw)
	}
	return v, nil
}

// MemGroupRepo implements allowance.GroupRepository in memory.
type MemGroupRepo struct {
	mu      sync.Mutex
	Groups  []allowance.CreditGroup
	Members map[uuid.UUID][]string
}

var _ allowance.GroupRepository = (*MemGroupRepo)(nil)

func (r *MemGroupRepo) Create(_ context.Context, g *allowance.CreditGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Groups {
		if existing.Name == g.Name {
			return errors.Wrapf(errors.ErrAlreadyExists, "credit group %q", g.Name)
		}
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	r.Groups = append(r.Groups, *g)
	return nil
}

func (r *MemGroupRepo) GetByName(_ context.Context, name string) (*allowance.CreditGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.Groups {
		if g.Name == name {
			out := g
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "credit group %q", name)
}

func (r *MemGroupRepo) List(context.Context) ([]allowance.CreditGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]allowance.CreditGroup, len(r.Groups))
	copy(out, r.Groups)
	return out, nil
}

func (r *MemGroupRepo) AddUser(_ context.Context, groupID uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Members == nil {
		r.Members = make(map[uuid.UUID][]string)
	}
	for _, u := range r.Members[groupID] {
		if u == userID {
			return nil
		}
	}
	r.Members[groupID] = append(r.Members[groupID], userID)
	return nil
}

func (r *MemGroupRepo) RemoveUser(_ context.Context, groupID uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.Members[groupID]
	for i, u := range members {
		if u == userID {
			r.Members[groupID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *MemGroupRepo) SumUserAllowance(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, g := range r.Groups {
		for _, u := range r.Members[g.ID] {
			if u == userID {
				sum += g.MaxCredit
			}
		}
	}
	return sum, nil
}

// MemSponsoredRepo implements allowance.SponsoredRepository in memory.
type MemSponsoredRepo struct {
	mu         sync.Mutex
	Allowances []allowance.SponsoredAllowance
}

var _ allowance.SponsoredRepository = (*MemSponsoredRepo)(nil)

func (r *MemSponsoredRepo) Create(_ context.Context, sa *allowance.SponsoredAllowance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Allowances {
		if existing.Name == sa.Name {
			return errors.Wrapf(errors.ErrAlreadyExists, "sponsored allowance %q", sa.Name)
		}
	}
	if sa.ID == uuid.Nil {
		sa.ID = uuid.New()
	}
	r.Allowances = append(r.Allowances, *sa)
	return nil
}

func (r *MemSponsoredRepo) GetByID(_ context.Context, id uuid.UUID) (*allowance.SponsoredAllowance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sa := range r.Allowances {
		if sa.ID == id {
			out := sa
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "sponsored allowance %s", id)
}

func (r *MemSponsoredRepo) GetByName(_ context.Context, name string) (*allowance.SponsoredAllowance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sa := range r.Allowances {
		if sa.Name == name {
			out := sa
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "sponsored allowance %q", name)
}

func (r *MemSponsoredRepo) List(_ context.Context, sponsorID string) ([]allowance.SponsoredAllowance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []allowance.SponsoredAllowance
	for _, sa := range r.Allowances {
		if sponsorID == "" || sa.SponsorID == sponsorID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (r *MemSponsoredRepo) Update(_ context.Context, upd *allowance.SponsoredAllowance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sa := range r.Allowances {
		if sa.ID == upd.ID {
			if upd.Models == nil {
				upd.Models = sa.Models
			}
			r.Allowances[i] = *upd
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "sponsored allowance %s", upd.ID)
}

func (r *MemSponsoredRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sa := range r.Allowances {
		if sa.ID == id {
			r.Allowances = append(r.Allowances[:i], r.Allowances[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "sponsored allowance %s", id)
}

// MemUsageRepo implements usage.Repository in memory.
type MemUsageRepo struct {
	mu     sync.Mutex
	Rows   []usage.TokenUsageLog
	FailOn func(row *usage.TokenUsageLog) error
	nextID int64
}

var _ usage.Repository = (*MemUsageRepo)(nil)

func (r *MemUsageRepo) Insert(_ context.Context, row *usage.TokenUsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn != nil {
		if err := r.FailOn(row); err != nil {
			return err
		}
	}
	r.nextID++
	row.ID = r.nextID
	r.Rows = append(r.Rows, *row)
	return nil
}

func (r *MemUsageRepo) SumByModel(_ context.Context, f usage.SumFilter) ([]usage.ModelTokenSum, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantAllowance, sponsored := f.Scope.AllowanceID()

	byModel := make(map[string]*usage.ModelTokenSum)
	var order []string
	for _, row := range r.Rows {
		if row.LogDate.Before(f.Window.Start) || row.LogDate.After(f.Window.End) {
			continue
		}
		if sponsored {
			if row.SponsoredAllowanceID == nil || *row.SponsoredAllowanceID != wantAllowance {
				continue
			}
		} else if row.SponsoredAllowanceID != nil {
			continue
		}
		if f.UserID != "" && row.UserID != f.UserID {
			continue
		}
		if len(f.ModelIDs) > 0 && !contains(f.ModelIDs, row.ModelID) {
			continue
		}

		sum, ok := byModel[row.ModelID]
		if !ok {
			sum = &usage.ModelTokenSum{ModelID: row.ModelID}
			byModel[row.ModelID] = sum
			order = append(order, row.ModelID)
		}
		sum.PromptTokens += row.PromptTokens
		sum.ResponseTokens += row.ResponseTokens
	}

	out := make([]usage.ModelTokenSum, 0, len(order))
	for _, id := range order {
		out = append(out, *byModel[id])
	}
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
