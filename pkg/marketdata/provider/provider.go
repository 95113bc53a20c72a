package provider

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/stockscraper/internal/types"
)

// RawBar is one provider row before normalization. Price and volume cells may be
// missing when the provider emits a placeholder row.
type RawBar struct {
	// Timestamp is the bar time in the exchange location, including time of day.
	Timestamp time.Time
	Open      optional.Option[float64]
	High      optional.Option[float64]
	Low       optional.Option[float64]
	Close     optional.Option[float64]
	Volume    optional.Option[int64]
	// AdjClose, Dividends and StockSplits are provider extras that the
	// output table does not carry.
	AdjClose    optional.Option[float64]
	Dividends   float64
	StockSplits float64
}

// RawSeries is the provider response for a single ticker and window.
type RawSeries struct {
	Ticker   string
	Interval types.Interval
	// Timezone is the exchange timezone name reported by the provider, if any.
	Timezone string
	Bars     []RawBar
}

// IsEmpty reports whether the provider returned no rows.
func (r RawSeries) IsEmpty() bool {
	return len(r.Bars) == 0
}

// Provider fetches historical bars for one ticker at a time.
type Provider interface {
	// Name returns a short identifier used in logs.
	Name() string
	// Fetch downloads the bars for the given ticker between startDate (inclusive)
	// and endDate (exclusive) at the given interval. Only the calendar dates of
	// startDate and endDate are used; the days are taken in the exchange timezone.
	// An empty RawSeries with a nil error means the provider has no data for the window.
	// example:
	// Fetch(ctx, "AAPL", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), types.IntervalDaily)
	Fetch(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, interval types.Interval) (RawSeries, error)
}
