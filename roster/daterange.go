package roster

import (
	"time"

	"github.com/jharbyjoel/appointment-app/appointment"
)

// ErrInvalidRange is returned when a range bound is not a YYYY-MM-DD date or
// the start is after the end.
var ErrInvalidRange = appointment.NewInputError("Invalid date range")

// ErrRangeTooLarge is returned when a range spans more days than the
// aggregator allows.
var ErrRangeTooLarge = appointment.NewInputError("Date range too large")

// DateRange returns every calendar date from start to end inclusive, in
// ascending order.
func DateRange(start, end string) ([]string, error) {
	return BoundedDateRange(start, end, 0)
}

// BoundedDateRange is DateRange with a cap: a range of more than maxDays days
// returns ErrRangeTooLarge before any date is generated. maxDays <= 0 means no
// cap.
func BoundedDateRange(start, end string, maxDays int) ([]string, error) {
	from, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return nil, ErrInvalidRange
	}

	to, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return nil, ErrInvalidRange
	}

	if from.After(to) {
		return nil, ErrInvalidRange
	}

	days := daysBetween(from, to) + 1
	if maxDays > 0 && days > maxDays {
		return nil, ErrRangeTooLarge
	}

	dates := make([]string, 0, days)

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(time.DateOnly))
	}

	return dates, nil
}

// Window is an inclusive date range.
type Window struct {
	Start string
	End   string
}

// DefaultWindow returns the range a roster covers when none is given: from 90
// days before now to 30 days after, by the UTC calendar.
func DefaultWindow(now time.Time) Window {
	today := now.UTC()

	return Window{
		Start: today.AddDate(0, 0, -90).Format(time.DateOnly),
		End:   today.AddDate(0, 0, 30).Format(time.DateOnly),
	}
}

// daysBetween counts whole days between two UTC midnights. Unix seconds are
// used because time.Duration saturates after about 292 years.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / (24 * 60 * 60))
}
