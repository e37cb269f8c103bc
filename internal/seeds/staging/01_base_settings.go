package staging

import (
	"context"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/seeds"
)

// SeedBaseSettings sets the staging base allowance. Pricing on staging is
// managed by hand to mirror production rates.
func SeedBaseSettings(ctx context.Context, s *seeds.Seeder) error {
	return s.Settings().Set(ctx, allowance.BaseCreditAllowanceKey, "500")
}
