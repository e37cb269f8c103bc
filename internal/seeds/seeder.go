// Package seeds populates reference data per environment: model pricing,
// base settings, and credit groups. Seeds are idempotent and safe to rerun.
package seeds

import (
	"github.com/jmoiron/sqlx"

	"creditgate/internal/repository/postgres"
	"creditgate/pkg/logger"
)

// Seeder bundles the repositories seed functions write through.
type Seeder struct {
	pricing  *postgres.ModelPricingRepository
	settings *postgres.BaseSettingRepository
	groups   *postgres.CreditGroupRepository
	log      *logger.Logger
}

// New creates a seeder writing through the given database handle.
func New(db *sqlx.DB) *Seeder {
	return &Seeder{
		pricing:  postgres.NewModelPricingRepository(db),
		settings: postgres.NewBaseSettingRepository(db),
		groups:   postgres.NewCreditGroupRepository(db),
		log:      logger.Get().With("component", "seeder"),
	}
}

// Pricing returns the model pricing repository.
func (s *Seeder) Pricing() *postgres.ModelPricingRepository { return s.pricing }

// Settings returns the base settings repository.
func (s *Seeder) Settings() *postgres.BaseSettingRepository { return s.settings }

// Groups returns the credit group repository.
func (s *Seeder) Groups() *postgres.CreditGroupRepository { return s.groups }

// Log returns the seeder logger.
func (s *Seeder) Log() *logger.Logger { return s.log }
