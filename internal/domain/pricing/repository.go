package pricing

import "context"

// Repository defines operations for model pricing persistence.
// Pricing rows are slow-changing reference data maintained by administrators.
type Repository interface {
	// Create inserts a new pricing row
	Create(ctx context.Context, m *ModelPricing) error

	// GetAll retrieves all pricing rows
	GetAll(ctx context.Context) ([]ModelPricing, error)

	// GetByProvider retrieves pricing rows for a single provider
	GetByProvider(ctx context.Context, provider string) ([]ModelPricing, error)
}
