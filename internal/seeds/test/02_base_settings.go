package test

import (
	"context"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/seeds"
)

// SeedBaseSettings sets a small base allowance so limit paths are easy to hit.
func SeedBaseSettings(ctx context.Context, s *seeds.Seeder) error {
	return s.Settings().Set(ctx, allowance.BaseCreditAllowanceKey, "10")
}
