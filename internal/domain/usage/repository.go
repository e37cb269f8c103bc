package usage

import (
	"context"

	"creditgate/internal/domain/allowance"
)

// SumFilter selects usage rows for aggregation. The scope filter always
// applies: personal scope matches only rows without a sponsored allowance id,
// sponsored scope matches only rows carrying that exact id.
type SumFilter struct {
	// UserID restricts to one user's rows; empty means any user (used for
	// the cross-user lifetime cap of a sponsored allowance).
	UserID string

	// Window bounds log_date inclusively on both ends.
	Window Window

	// ModelIDs restricts to the given model set.
	ModelIDs []string

	// Scope selects the ledger partition.
	Scope allowance.Scope
}

// Repository defines operations for the token usage fact table.
type Repository interface {
	// Insert appends one usage row. The write is atomic: the row is either
	// fully persisted or not at all.
	Insert(ctx context.Context, log *TokenUsageLog) error

	// SumByModel returns per-model prompt/response token sums for the rows
	// matching the filter.
	SumByModel(ctx context.Context, filter SumFilter) ([]ModelTokenSum, error)
}
