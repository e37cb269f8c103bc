package pricing

import (
	"context"

	"creditgate/pkg/errors"
)

// Catalog provides read access to the model pricing table.
type Catalog struct {
	repo Repository
}

// NewCatalog constructs a pricing catalog.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// GetModels returns all models, optionally filtered by provider
// (empty provider means all providers).
func (c *Catalog) GetModels(ctx context.Context, provider string) ([]ModelPricing, error) {
	if provider == "" {
		return c.repo.GetAll(ctx)
	}
	return c.repo.GetByProvider(ctx, provider)
}

// PaidModels returns all models that consume credits.
func (c *Catalog) PaidModels(ctx context.Context) ([]ModelPricing, error) {
	models, err := c.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	paid := make([]ModelPricing, 0, len(models))
	for _, m := range models {
		if m.Paid() {
			paid = append(paid, m)
		}
	}
	return paid, nil
}

// IsPaid reports whether a model requires credits to use.
// The model id must resolve to exactly one pricing row; zero or duplicate
// matches are a data integrity fault.
func (c *Catalog) IsPaid(ctx context.Context, modelID string) (bool, error) {
	models, err := c.repo.GetAll(ctx)
	if err != nil {
		return false, err
	}

	var found *ModelPricing
	for i := range models {
		if models[i].ID != modelID {
			continue
		}
		if found != nil {
			return false, errors.Wrapf(errors.ErrAmbiguousModel, "duplicate pricing entries for model %q", modelID)
		}
		found = &models[i]
	}
	if found == nil {
		return false, errors.Wrapf(errors.ErrAmbiguousModel, "no pricing entry for model %q", modelID)
	}

	return found.Paid(), nil
}
