package dev

import (
	"context"

	"creditgate/internal/domain/pricing"
	"creditgate/internal/seeds"
)

// SeedModelPricing loads the development pricing catalog (idempotent).
// Rates are credits per token block; free models carry zero rates and are
// never gated.
func SeedModelPricing(ctx context.Context, s *seeds.Seeder) error {
	log := s.Log()

	models := []pricing.ModelPricing{
		{
			ID: "claude-3-5-sonnet", Provider: "anthropic", Name: "Claude 3.5 Sonnet",
			InputCostCredits: 3, PerInputTokens: 1000,
			OutputCostCredits: 15, PerOutputTokens: 1000,
		},
		{
			ID: "claude-3-5-haiku", Provider: "anthropic", Name: "Claude 3.5 Haiku",
			InputCostCredits: 1, PerInputTokens: 1000,
			OutputCostCredits: 5, PerOutputTokens: 1000,
		},
		{
			ID: "gpt-4o", Provider: "openai", Name: "GPT-4o",
			InputCostCredits: 3, PerInputTokens: 1000,
			OutputCostCredits: 10, PerOutputTokens: 1000,
		},
		{
			ID: "gpt-4o-mini", Provider: "openai", Name: "GPT-4o mini",
			InputCostCredits: 1, PerInputTokens: 5000,
			OutputCostCredits: 1, PerOutputTokens: 2000,
		},
		{
			ID: "gemini-2.0-flash", Provider: "gemini", Name: "Gemini 2.0 Flash",
			InputCostCredits: 1, PerInputTokens: 10000,
			OutputCostCredits: 1, PerOutputTokens: 2500,
		},
		{
			// free tier model, never consumes credits
			ID: "gemini-2.0-flash-lite", Provider: "gemini", Name: "Gemini 2.0 Flash Lite",
		},
	}

	for _, m := range models {
		m := m
		if err := s.Pricing().Upsert(ctx, &m); err != nil {
			return err
		}
		log.Infow("seeded model pricing", "model", m.ID, "provider", m.Provider)
	}

	return nil
}
