package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"creditgate/pkg/errors"
)

// Tracker ships captured errors to Sentry. The accounting path reports
// through it whenever a usage row cannot be written after a delivered
// response, so those failures survive even if logs are lost.
type Tracker struct {
	hub *sentry.Hub
}

func New(dsn string, environment string) (*Tracker, error) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.Level(level.String()))
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureMessage(message)
	return nil
}

// Flush blocks until buffered events are sent, bounded by ctx's deadline
// or two seconds.
func (t *Tracker) Flush(ctx context.Context) error {
	wait := 2 * time.Second
	if d, ok := ctx.Deadline(); ok {
		wait = time.Until(d)
	}
	t.hub.Flush(wait)
	return nil
}
