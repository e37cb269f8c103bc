package usage

import (
	"time"

	"github.com/google/uuid"
)

// TokenUsageLog is one row of the append-only usage fact table, created
// exactly once per completed (streaming or batch) model call. Rows are never
// updated or deleted in normal operation; spend is always derived by summing
// them.
type TokenUsageLog struct {
	ID             int64     `db:"id"`
	Provider       string    `db:"provider"`
	ModelID        string    `db:"model_id"`
	UserID         string    `db:"user_id"`
	PromptTokens   int64     `db:"prompt_tokens"`
	ResponseTokens int64     `db:"response_tokens"`
	LogDate        time.Time `db:"log_date"`

	// SponsoredAllowanceID is nil for personal usage. Personal and
	// sponsor-scoped usage are separate ledgers and are never merged.
	SponsoredAllowanceID *uuid.UUID `db:"sponsored_allowance_id"`
}

// ModelTokenSum is the per-model aggregation of usage rows in a window.
type ModelTokenSum struct {
	ModelID        string `db:"model_id"`
	PromptTokens   int64  `db:"prompt_tokens"`
	ResponseTokens int64  `db:"response_tokens"`
}
