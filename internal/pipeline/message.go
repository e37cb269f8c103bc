package pipeline

import (
	"creditgate/pkg/errors"
)

// LimitMessage maps a gate denial to the text shown to the user in place of
// a model response. Non-limit errors return empty, meaning the error should
// propagate normally.
func LimitMessage(err error) string {
	var monthly *errors.MonthlyLimitExceededError
	if errors.As(err, &monthly) {
		return monthly.Error()
	}

	var total *errors.TotalLimitExceededError
	if errors.As(err, &total) {
		return total.Error()
	}

	return ""
}

// IsLimitExceeded reports whether err is a credit limit denial.
func IsLimitExceeded(err error) bool {
	return errors.Is(err, errors.ErrLimitExceeded)
}
