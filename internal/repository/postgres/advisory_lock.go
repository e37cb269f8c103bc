package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jmoiron/sqlx"

	"creditgate/internal/domain/ledger"
	pkgerrors "creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

// Compile-time check
var _ ledger.UserLocker = (*AdvisoryUserLocker)(nil)

// AdvisoryUserLocker serializes check-then-log per user with postgres
// session advisory locks. Each Lock call pins one connection for the
// duration of the critical section, so pg_advisory_unlock releases on the
// same session that acquired.
type AdvisoryUserLocker struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewAdvisoryUserLocker creates a user locker backed by advisory locks
func NewAdvisoryUserLocker(db *sqlx.DB) *AdvisoryUserLocker {
	return &AdvisoryUserLocker{
		db:  db,
		log: logger.Get().With("component", "advisory_lock"),
	}
}

// Lock blocks until the user's advisory lock is held or ctx is done.
// The release func unlocks and returns the connection to the pool; it must
// be called exactly once.
func (l *AdvisoryUserLocker) Lock(ctx context.Context, userID string) (func(), error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to acquire connection for advisory lock")
	}

	key := userLockKey(userID)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Close()
		return nil, pkgerrors.Wrapf(err, "failed to lock user %s", userID)
	}

	release := func() {
		// unlock on a background context: release must proceed even when
		// the request context is already canceled
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			l.log.Errorw("failed to release advisory lock", "user", userID, "error", err)
		}
		conn.Close()
	}

	return release, nil
}

// userLockKey hashes a user ID into the 64-bit advisory lock keyspace
func userLockKey(userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	return int64(h.Sum64())
}
