package postgres

import (
	"context"
	"database/sql"

	"creditgate/internal/domain/pricing"
	pkgerrors "creditgate/pkg/errors"
)

// Compile-time check
var _ pricing.Repository = (*ModelPricingRepository)(nil)

// ModelPricingRepository implements pricing.Repository using sqlx
type ModelPricingRepository struct {
	db DBTX
}

// NewModelPricingRepository creates a new model pricing repository
func NewModelPricingRepository(db DBTX) *ModelPricingRepository {
	return &ModelPricingRepository{db: db}
}

// Create inserts a pricing row. Model ids are provider-qualified and unique.
func (r *ModelPricingRepository) Create(ctx context.Context, m *pricing.ModelPricing) error {
	query := `
		INSERT INTO model_pricing (
			id, provider, name,
			input_cost_credits, per_input_tokens,
			output_cost_credits, per_output_tokens
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Provider, m.Name,
		m.InputCostCredits, m.PerInputTokens,
		m.OutputCostCredits, m.PerOutputTokens,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create model pricing")
	}

	return nil
}

// Upsert inserts a pricing row or refreshes the rates of an existing one.
// Used by environment seeding; request-path code never writes pricing.
func (r *ModelPricingRepository) Upsert(ctx context.Context, m *pricing.ModelPricing) error {
	query := `
		INSERT INTO model_pricing (
			id, provider, name,
			input_cost_credits, per_input_tokens,
			output_cost_credits, per_output_tokens
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			name = EXCLUDED.name,
			input_cost_credits = EXCLUDED.input_cost_credits,
			per_input_tokens = EXCLUDED.per_input_tokens,
			output_cost_credits = EXCLUDED.output_cost_credits,
			per_output_tokens = EXCLUDED.per_output_tokens`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Provider, m.Name,
		m.InputCostCredits, m.PerInputTokens,
		m.OutputCostCredits, m.PerOutputTokens,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to upsert model pricing")
	}

	return nil
}

// GetAll retrieves every pricing row
func (r *ModelPricingRepository) GetAll(ctx context.Context) ([]pricing.ModelPricing, error) {
	query := `
		SELECT id, provider, name,
		       input_cost_credits, per_input_tokens,
		       output_cost_credits, per_output_tokens
		FROM model_pricing
		ORDER BY provider, id`

	var models []pricing.ModelPricing
	if err := r.db.SelectContext(ctx, &models, query); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get model pricing")
	}

	return models, nil
}

// GetByProvider retrieves pricing rows for one provider
func (r *ModelPricingRepository) GetByProvider(ctx context.Context, provider string) ([]pricing.ModelPricing, error) {
	query := `
		SELECT id, provider, name,
		       input_cost_credits, per_input_tokens,
		       output_cost_credits, per_output_tokens
		FROM model_pricing
		WHERE provider = $1
		ORDER BY id`

	var models []pricing.ModelPricing
	err := r.db.SelectContext(ctx, &models, query, provider)
	if err != nil && err != sql.ErrNoRows {
		return nil, pkgerrors.Wrap(err, "failed to get model pricing by provider")
	}

	return models, nil
}
