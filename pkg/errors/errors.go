package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a requested allowance, model, or group does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrConfiguration indicates an invalid combination of arguments,
	// e.g. both an allowance id and a name supplied, or neither
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates an upstream service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates a provider API rate limit was exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Credit accounting errors

var (
	// ErrLimitExceeded is the common kind for all credit limit violations.
	// Monthly and total limit errors both match it via errors.Is.
	ErrLimitExceeded = errors.New("credit limit exceeded")

	// ErrAmbiguousModel indicates the pricing catalog has zero or duplicate
	// entries for a model id. Data integrity fault, not user-facing.
	ErrAmbiguousModel = errors.New("ambiguous model id")
)

// MonthlyLimitExceededError is returned when a user's monthly credit slice is
// exhausted, either the general allowance or the per-user slice of a
// sponsored allowance.
type MonthlyLimitExceededError struct {
	AllowanceName string // empty for the general allowance
	MaxCredits    int64
	ResetsAt      time.Time
}

func (e *MonthlyLimitExceededError) Error() string {
	if e.AllowanceName != "" {
		return fmt.Sprintf(
			"you've exceeded the monthly usage limit (%s credits) for the sponsored allowance %q; "+
				"your usage will reset %s; until then, please use a model not covered by this allowance",
			humanize.Comma(e.MaxCredits), e.AllowanceName, humanize.Time(e.ResetsAt),
		)
	}
	return fmt.Sprintf(
		"you've exceeded the monthly usage limit (%s credits) for the paid models; "+
			"your usage will reset %s; to obtain more credits, please reach out to the service provider",
		humanize.Comma(e.MaxCredits), humanize.Time(e.ResetsAt),
	)
}

func (e *MonthlyLimitExceededError) Unwrap() error { return ErrLimitExceeded }

// TotalLimitExceededError is returned when the lifetime pool of a sponsored
// allowance is exhausted across all of its users.
type TotalLimitExceededError struct {
	AllowanceName string
}

func (e *TotalLimitExceededError) Error() string {
	return fmt.Sprintf(
		"the total credit limit for the sponsored allowance %q has been exceeded; "+
			"please contact the sponsor to add more credits, or choose a different model",
		e.AllowanceName,
	)
}

func (e *TotalLimitExceededError) Unwrap() error { return ErrLimitExceeded }

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
