package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"creditgate/internal/adapters/config"
	"creditgate/internal/adapters/postgres"
)

// PostgresTestHelper wraps a real database connection in a transaction
// that is rolled back when the test finishes, so repository tests never
// leave rows behind. Repositories that commit their own transactions
// should use DB() and clean up explicitly instead.
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewTestPostgres connects using POSTGRES_* env config and begins the
// per-test transaction. Call inside tests already gated on
// testing.Short().
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()
	return NewPostgresTestHelper(t, LoadPostgresConfigFromEnv(t))
}

func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("connect test postgres: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("begin test transaction: %v", err)
	}

	h := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(h.Rollback)
	t.Cleanup(func() { _ = client.Close() })
	return h
}

// Tx is the handle repositories under test should run on.
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB bypasses the test transaction for repositories that manage their own.
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}
