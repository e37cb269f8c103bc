package allowance

import (
	"context"

	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// Resolver computes a user's maximum monthly credits from the three
// allowance sources: the flat base allowance, additive credit-group
// allowances, and exclusive sponsored allowances.
type Resolver struct {
	groups    GroupRepository
	settings  SettingRepository
	sponsored SponsoredRepository
	log       *logger.Logger
}

// NewResolver constructs an allowance resolver.
func NewResolver(groups GroupRepository, settings SettingRepository, sponsored SponsoredRepository) *Resolver {
	return &Resolver{
		groups:    groups,
		settings:  settings,
		sponsored: sponsored,
		log:       logger.Get().With("component", "allowance_resolver"),
	}
}

// MaxCredits returns the user's maximum monthly credits for the given scope.
//
// Personal scope: base_credit_allowance + sum of max_credit over all credit
// groups the user belongs to. Sponsored scope: the allowance's monthly credit
// limit verbatim, which may be unbounded.
func (r *Resolver) MaxCredits(ctx context.Context, userID string, scope Scope) (Limit, error) {
	if id, ok := scope.AllowanceID(); ok {
		a, err := r.sponsored.GetByID(ctx, id)
		if err != nil {
			return Limit{}, errors.Wrapf(err, "max credits for allowance %s", id)
		}
		if a.MonthlyCreditLimit == nil {
			return Limit{Unbounded: true}, nil
		}
		return Limit{Credits: *a.MonthlyCreditLimit}, nil
	}

	base, err := r.settings.GetInt(ctx, BaseCreditAllowanceKey)
	if err != nil {
		return Limit{}, errors.Wrap(err, "read base credit allowance")
	}

	groups, err := r.groups.SumUserAllowance(ctx, userID)
	if err != nil {
		return Limit{}, errors.Wrapf(err, "sum group allowances for user %s", userID)
	}

	return Limit{Credits: base + groups}, nil
}

// SponsoredByName resolves a sponsored allowance by its lookup name.
func (r *Resolver) SponsoredByName(ctx context.Context, name string) (*SponsoredAllowance, error) {
	a, err := r.sponsored.GetByName(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve sponsored allowance %q", name)
	}
	return a, nil
}
