package errors

import "context"

// Level is the severity attached to a captured event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string { return string(l) }

// Tracker reports errors and notable events to an external tracking
// service. Accounting failures (a usage row that could not be written)
// go through CaptureError so they are never lost to log rotation.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// Flush blocks until buffered events are delivered or ctx expires.
	Flush(ctx context.Context) error
}
