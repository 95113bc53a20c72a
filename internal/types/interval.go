package types

import (
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

// Interval is the sampling granularity of price bars.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalWeekly  Interval = "1wk"
	IntervalMonthly Interval = "1mo"
)

// AllIntervals lists every supported interval in ascending granularity.
var AllIntervals = []Interval{IntervalDaily, IntervalWeekly, IntervalMonthly}

// ParseInterval converts a command line value into an Interval.
func ParseInterval(value string) (Interval, error) {
	interval := Interval(value)
	if !interval.Valid() {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "invalid interval %q, expected one of 1d, 1wk, 1mo", value)
	}

	return interval, nil
}

// Valid reports whether the interval is one of the supported values.
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	default:
		return false
	}
}

// Description returns a human readable name for the interval.
func (i Interval) Description() string {
	switch i {
	case IntervalDaily:
		return "daily"
	case IntervalWeekly:
		return "weekly"
	case IntervalMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

func (i Interval) String() string {
	return string(i)
}
