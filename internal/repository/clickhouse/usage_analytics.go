package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	pkgclickhouse "creditgate/pkg/clickhouse"
	"creditgate/pkg/errors"
)

// UsageRow is the denormalized analytics mirror of a token usage log.
// Postgres stays the accounting source of truth; this table only feeds
// dashboards and cost breakdowns.
type UsageRow struct {
	LogDate              time.Time
	Provider             string
	ModelID              string
	UserID               string
	PromptTokens         int64
	ResponseTokens       int64
	CreditsSpent         float64
	SponsoredAllowanceID string
}

// ProviderCredits aggregates credit spend per provider.
type ProviderCredits struct {
	Provider string  `ch:"provider"`
	Credits  float64 `ch:"credits"`
}

// ModelCredits aggregates credit spend per model.
type ModelCredits struct {
	Provider string  `ch:"provider"`
	ModelID  string  `ch:"model_id"`
	Credits  float64 `ch:"credits"`
}

// UsageAnalyticsRepository mirrors usage rows into ClickHouse through a
// batch writer and serves aggregate spend queries.
type UsageAnalyticsRepository struct {
	conn        driver.Conn
	batchWriter *pkgclickhouse.BatchWriter
}

// NewUsageAnalyticsRepository creates a usage analytics repository
func NewUsageAnalyticsRepository(conn driver.Conn) *UsageAnalyticsRepository {
	repo := &UsageAnalyticsRepository{conn: conn}

	repo.batchWriter = pkgclickhouse.NewBatchWriter(pkgclickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    "token_usage",
		MaxBatchSize: 500,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins the background flush loop
func (r *UsageAnalyticsRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *UsageAnalyticsRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store buffers a usage row for the next batch flush
func (r *UsageAnalyticsRepository) Store(ctx context.Context, row *UsageRow) error {
	return r.batchWriter.Add(ctx, row)
}

// GetProviderCredits sums credit spend per provider over a window
func (r *UsageAnalyticsRepository) GetProviderCredits(ctx context.Context, from, to time.Time) ([]ProviderCredits, error) {
	query := `
		SELECT provider, sum(credits_spent) AS credits
		FROM token_usage
		WHERE log_date >= ? AND log_date <= ?
		GROUP BY provider
		ORDER BY credits DESC`

	var out []ProviderCredits
	if err := r.conn.Select(ctx, &out, query, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to query provider credits")
	}

	return out, nil
}

// GetModelCredits sums credit spend per model over a window
func (r *UsageAnalyticsRepository) GetModelCredits(ctx context.Context, from, to time.Time) ([]ModelCredits, error) {
	query := `
		SELECT provider, model_id, sum(credits_spent) AS credits
		FROM token_usage
		WHERE log_date >= ? AND log_date <= ?
		GROUP BY provider, model_id
		ORDER BY credits DESC`

	var out []ModelCredits
	if err := r.conn.Select(ctx, &out, query, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to query model credits")
	}

	return out, nil
}

func (r *UsageAnalyticsRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	query := `
		INSERT INTO token_usage (
			log_date, provider, model_id, user_id,
			prompt_tokens, response_tokens, credits_spent,
			sponsored_allowance_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range batch {
		row, ok := item.(*UsageRow)
		if !ok {
			continue
		}
		err := stmt.Append(
			row.LogDate, row.Provider, row.ModelID, row.UserID,
			row.PromptTokens, row.ResponseTokens, row.CreditsSpent,
			row.SponsoredAllowanceID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append usage row")
		}
	}

	return errors.Wrap(stmt.Send(), "failed to send usage batch")
}
