package ledger

import "context"

// UserLocker serializes the check-then-log section per user, turning the
// soft monthly limit into a hard quota at the price of per-user request
// serialization. Lock blocks until the user's lock is held or ctx is done;
// the returned release func must be called exactly once.
//
// The postgres implementation uses session advisory locks; a no-op
// implementation keeps the default soft-limit behavior.
type UserLocker interface {
	Lock(ctx context.Context, userID string) (release func(), err error)
}

// NopLocker performs no locking. This is the default: concurrent requests
// by one user may collectively overspend past a cap before the usage rows
// land, which callers accept as a soft limit.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
