package dev

import (
	"context"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/seeds"
	"creditgate/pkg/errors"
)

// SeedCreditGroups creates the development credit groups (idempotent).
func SeedCreditGroups(ctx context.Context, s *seeds.Seeder) error {
	log := s.Log()

	groups := []allowance.CreditGroup{
		{Name: "power-users", MaxCredit: 5000, Description: "Heavy internal users"},
		{Name: "beta-testers", MaxCredit: 2000, Description: "Early access program"},
	}

	for _, g := range groups {
		g := g
		err := s.Groups().Create(ctx, &g)
		if errors.Is(err, errors.ErrAlreadyExists) {
			log.Infow("credit group already seeded", "group", g.Name)
			continue
		}
		if err != nil {
			return err
		}
		log.Infow("seeded credit group", "group", g.Name, "max_credit", g.MaxCredit)
	}

	return nil
}
