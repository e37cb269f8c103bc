package usage

import (
	"context"

	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/pricing"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// Aggregator sums historical token usage within a billing window and
// converts it to spent credits using the pricing catalog's per-model rates.
type Aggregator struct {
	repo Repository
	log  *logger.Logger
}

// NewAggregator constructs a usage aggregator.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{
		repo: repo,
		log:  logger.Get().With("component", "usage_aggregator"),
	}
}

// SumUsage returns the credits spent by the given user (any user when userID
// is empty) on the given models within the window and scope.
//
// Credits accumulate in floating point across the per-model sums; the grand
// total is truncated toward zero once at the end. The truncation point is a
// deliberate rounding rule: 2.99999 spent credits count as 2.
func (a *Aggregator) SumUsage(
	ctx context.Context,
	userID string,
	window Window,
	models []pricing.ModelPricing,
	scope allowance.Scope,
) (int64, error) {
	if len(models) == 0 {
		return 0, nil
	}

	ids := make([]string, len(models))
	byID := make(map[string]pricing.ModelPricing, len(models))
	for i, m := range models {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	sums, err := a.repo.SumByModel(ctx, SumFilter{
		UserID:   userID,
		Window:   window,
		ModelIDs: ids,
		Scope:    scope,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "sum usage in scope %s", scope)
	}

	var spent float64
	for _, row := range sums {
		m, ok := byID[row.ModelID]
		if !ok {
			// The query filters on the model set, so this indicates a
			// pricing row changed id mid-flight.
			return 0, errors.Wrapf(errors.ErrAmbiguousModel, "usage row for unknown model %q", row.ModelID)
		}
		spent += m.CreditsForTokens(row.PromptTokens, row.ResponseTokens)
	}

	return int64(spent), nil
}
