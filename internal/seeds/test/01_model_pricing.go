package test

import (
	"context"

	"creditgate/internal/domain/pricing"
	"creditgate/internal/seeds"
)

// SeedModelPricing loads a minimal catalog with round rates, useful for
// asserting exact credit arithmetic in integration tests.
func SeedModelPricing(ctx context.Context, s *seeds.Seeder) error {
	models := []pricing.ModelPricing{
		{
			ID: "test-paid", Provider: "anthropic", Name: "Test Paid",
			InputCostCredits: 1, PerInputTokens: 100,
			OutputCostCredits: 1, PerOutputTokens: 100,
		},
		{ID: "test-free", Provider: "anthropic", Name: "Test Free"},
	}

	for _, m := range models {
		m := m
		if err := s.Pricing().Upsert(ctx, &m); err != nil {
			return err
		}
	}
	return nil
}
