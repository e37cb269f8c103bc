package noop

import (
	"context"

	"creditgate/pkg/errors"
)

// Tracker discards everything. Used when no SENTRY_DSN is configured so
// callers never have to nil-check the tracker.
type Tracker struct{}

func New() *Tracker { return &Tracker{} }

func (t *Tracker) CaptureError(context.Context, error, map[string]string) error {
	return nil
}

func (t *Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *Tracker) Flush(context.Context) error { return nil }
