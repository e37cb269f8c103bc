package usage

import "time"

// Window is an inclusive billing interval over which usage is summed.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow returns the calendar month containing now, from the first day
// 00:00:00 to the last day 23:59:59, in the server's local time.
func MonthWindow(now time.Time) Window {
	year, month, _ := now.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return Window{Start: start, End: end}
}

// LifetimeWindow returns the interval from a sponsored allowance's creation
// to now. The total cap of a sponsored allowance is summed over its lifetime,
// not per month.
func LifetimeWindow(createdAt, now time.Time) Window {
	return Window{Start: createdAt, End: now}
}
