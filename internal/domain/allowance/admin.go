package allowance

import (
	"context"

	"github.com/google/uuid"

	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// Ref identifies a sponsored allowance by id or by name.
// Exactly one of the two must be set.
type Ref struct {
	ID   *uuid.UUID
	Name string
}

// RefByID builds a reference from an allowance id.
func RefByID(id uuid.UUID) Ref {
	return Ref{ID: &id}
}

// RefByName builds a reference from an allowance name.
func RefByName(name string) Ref {
	return Ref{Name: name}
}

// SponsoredUpdate describes a partial update: only non-nil fields change.
// A non-nil Models slice replaces the entire eligible-model set.
type SponsoredUpdate struct {
	NewName            *string
	SponsorID          *string
	Models             []string
	TotalCreditLimit   *int64
	MonthlyCreditLimit *int64
}

// Admin provides the administrative operations on reference data: sponsored
// allowances and credit groups. These are not hot-path operations.
type Admin struct {
	sponsored SponsoredRepository
	groups    GroupRepository
	log       *logger.Logger
}

// NewAdmin constructs the allowance admin service.
func NewAdmin(sponsored SponsoredRepository, groups GroupRepository) *Admin {
	return &Admin{
		sponsored: sponsored,
		groups:    groups,
		log:       logger.Get().With("component", "allowance_admin"),
	}
}

func (a *Admin) resolve(ctx context.Context, ref Ref) (*SponsoredAllowance, error) {
	switch {
	case ref.ID != nil && ref.Name != "":
		return nil, errors.Wrap(errors.ErrConfiguration, "pass either an allowance id or a name, not both")
	case ref.ID != nil:
		return a.sponsored.GetByID(ctx, *ref.ID)
	case ref.Name != "":
		return a.sponsored.GetByName(ctx, ref.Name)
	default:
		return nil, errors.Wrap(errors.ErrConfiguration, "either an allowance id or a name must be provided")
	}
}

// CreateSponsoredAllowance creates a new sponsored allowance with its
// eligible model set. The total credit limit is mandatory and must be
// positive; the monthly limit may be nil, meaning no per-user monthly cap.
func (a *Admin) CreateSponsoredAllowance(
	ctx context.Context,
	sponsorID, name string,
	models []string,
	totalCreditLimit int64,
	monthlyCreditLimit *int64,
) (*SponsoredAllowance, error) {
	if totalCreditLimit <= 0 {
		return nil, errors.Wrap(errors.ErrConfiguration, "total credit limit must be positive")
	}

	sa := &SponsoredAllowance{
		ID:                 uuid.New(),
		Name:               name,
		SponsorID:          sponsorID,
		TotalCreditLimit:   totalCreditLimit,
		MonthlyCreditLimit: monthlyCreditLimit,
		Models:             models,
	}

	if err := a.sponsored.Create(ctx, sa); err != nil {
		return nil, errors.Wrapf(err, "create sponsored allowance %q", name)
	}

	a.log.Infow("sponsored allowance created",
		"id", sa.ID, "name", name, "sponsor", sponsorID, "total_limit", totalCreditLimit)
	return sa, nil
}

// GetSponsoredAllowance fetches a sponsored allowance by id or name.
func (a *Admin) GetSponsoredAllowance(ctx context.Context, ref Ref) (*SponsoredAllowance, error) {
	return a.resolve(ctx, ref)
}

// ListSponsoredAllowances lists allowances, optionally filtered by sponsor.
func (a *Admin) ListSponsoredAllowances(ctx context.Context, sponsorID string) ([]SponsoredAllowance, error) {
	return a.sponsored.List(ctx, sponsorID)
}

// UpdateSponsoredAllowance applies a partial update to an allowance
// identified by id or name.
func (a *Admin) UpdateSponsoredAllowance(ctx context.Context, ref Ref, upd SponsoredUpdate) error {
	sa, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}

	if upd.NewName != nil {
		sa.Name = *upd.NewName
	}
	if upd.SponsorID != nil {
		sa.SponsorID = *upd.SponsorID
	}
	if upd.TotalCreditLimit != nil {
		sa.TotalCreditLimit = *upd.TotalCreditLimit
	}
	if upd.MonthlyCreditLimit != nil {
		sa.MonthlyCreditLimit = upd.MonthlyCreditLimit
	}
	sa.Models = upd.Models // nil means keep the current set

	if err := a.sponsored.Update(ctx, sa); err != nil {
		return errors.Wrapf(err, "update sponsored allowance %s", sa.ID)
	}
	return nil
}

// DeleteSponsoredAllowance removes an allowance and its model associations.
func (a *Admin) DeleteSponsoredAllowance(ctx context.Context, ref Ref) error {
	sa, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := a.sponsored.Delete(ctx, sa.ID); err != nil {
		return errors.Wrapf(err, "delete sponsored allowance %s", sa.ID)
	}
	a.log.Infow("sponsored allowance deleted", "id", sa.ID, "name", sa.Name)
	return nil
}

// CreateCreditGroup creates a credit group granting a monthly allowance to
// its members.
func (a *Admin) CreateCreditGroup(ctx context.Context, name string, maxCredit int64, description string) (*CreditGroup, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "credit group name is required")
	}
	group := &CreditGroup{
		ID:          uuid.New(),
		Name:        name,
		MaxCredit:   maxCredit,
		Description: description,
	}
	if err := a.groups.Create(ctx, group); err != nil {
		return nil, errors.Wrapf(err, "create credit group %q", name)
	}
	return group, nil
}

// GetCreditGroup fetches a credit group by name.
func (a *Admin) GetCreditGroup(ctx context.Context, name string) (*CreditGroup, error) {
	return a.groups.GetByName(ctx, name)
}

// AddUserToGroup adds a user to the named credit group.
func (a *Admin) AddUserToGroup(ctx context.Context, groupName, userID string) error {
	group, err := a.groups.GetByName(ctx, groupName)
	if err != nil {
		return err
	}
	return a.groups.AddUser(ctx, group.ID, userID)
}
