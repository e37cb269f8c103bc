package postgres

import (
	"context"
	"strconv"

	"github.com/lib/pq"

	"creditgate/internal/domain/usage"
	"creditgate/internal/metrics"
	pkgerrors "creditgate/pkg/errors"
)

// Compile-time check
var _ usage.Repository = (*TokenUsageRepository)(nil)

// TokenUsageRepository implements usage.Repository using sqlx
type TokenUsageRepository struct {
	db DBTX
}

// NewTokenUsageRepository creates a new token usage repository
func NewTokenUsageRepository(db DBTX) *TokenUsageRepository {
	return &TokenUsageRepository{db: db}
}

// Insert appends one usage row. The write is a single statement, so it is
// atomic on its own: there is no partial usage state to clean up.
func (r *TokenUsageRepository) Insert(ctx context.Context, row *usage.TokenUsageLog) error {
	query := `
		INSERT INTO token_usage_logs (
			log_date, provider, model_id, user_id,
			prompt_tokens, response_tokens, sponsored_allowance_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		row.LogDate, row.Provider, row.ModelID, row.UserID,
		row.PromptTokens, row.ResponseTokens, row.SponsoredAllowanceID,
	).Scan(&row.ID)

	metrics.RecordDBQuery("postgres", "usage_insert", err)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert token usage")
	}

	return nil
}

// SumByModel aggregates prompt and response tokens per model over the
// filter's window and scope.
//
// Scope selects the ledger: personal usage (NULL sponsored_allowance_id)
// and sponsored usage (a specific id) are disjoint partitions and are never
// summed together. An empty UserID sums across all users, which is how the
// cross-user sponsored total pool is computed.
func (r *TokenUsageRepository) SumByModel(ctx context.Context, f usage.SumFilter) ([]usage.ModelTokenSum, error) {
	query := `
		SELECT model_id,
		       COALESCE(SUM(prompt_tokens), 0)   AS prompt_tokens,
		       COALESCE(SUM(response_tokens), 0) AS response_tokens
		FROM token_usage_logs
		WHERE log_date >= $1 AND log_date <= $2`
	args := []interface{}{f.Window.Start, f.Window.End}

	if id, ok := f.Scope.AllowanceID(); ok {
		args = append(args, id)
		query += ` AND sponsored_allowance_id = $` + strconv.Itoa(len(args))
	} else {
		query += ` AND sponsored_allowance_id IS NULL`
	}

	if f.UserID != "" {
		args = append(args, f.UserID)
		query += ` AND user_id = $` + strconv.Itoa(len(args))
	}

	if len(f.ModelIDs) > 0 {
		args = append(args, pq.Array(f.ModelIDs))
		query += ` AND model_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}

	query += ` GROUP BY model_id`

	var sums []usage.ModelTokenSum
	err := r.db.SelectContext(ctx, &sums, query, args...)
	metrics.RecordDBQuery("postgres", "usage_sum", err)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to sum token usage")
	}

	return sums, nil
}
