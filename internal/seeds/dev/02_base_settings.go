package dev

import (
	"context"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/seeds"
)

// SeedBaseSettings sets the flat monthly allowance every user gets.
func SeedBaseSettings(ctx context.Context, s *seeds.Seeder) error {
	if err := s.Settings().Set(ctx, allowance.BaseCreditAllowanceKey, "1000"); err != nil {
		return err
	}
	s.Log().Infow("seeded base settings", "key", allowance.BaseCreditAllowanceKey, "value", "1000")
	return nil
}
