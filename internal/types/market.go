package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in every output table.
const DateLayout = "2006-01-02"

// PriceColumns is the fixed column order of an output table.
var PriceColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// PriceBar is a single OHLCV observation for one calendar date.
type PriceBar struct {
	// Date is the calendar date in YYYY-MM-DD form, without time of day.
	Date   string          `csv:"Date"`
	Open   decimal.Decimal `csv:"Open"`
	High   decimal.Decimal `csv:"High"`
	Low    decimal.Decimal `csv:"Low"`
	Close  decimal.Decimal `csv:"Close"`
	Volume int64           `csv:"Volume"`
}

// Time parses the bar date as midnight UTC.
func (b PriceBar) Time() (time.Time, error) {
	return time.Parse(DateLayout, b.Date)
}

// PriceSeries is an ascending, date-unique run of bars for one ticker and interval.
type PriceSeries struct {
	Ticker   string
	Interval Interval
	Bars     []PriceBar
}

// Len returns the number of bars in the series.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// IsEmpty reports whether the series has no bars.
func (s PriceSeries) IsEmpty() bool {
	return len(s.Bars) == 0
}

// FirstDate returns the date of the first bar, or an empty string for an empty series.
func (s PriceSeries) FirstDate() string {
	if s.IsEmpty() {
		return ""
	}

	return s.Bars[0].Date
}

// LastDate returns the date of the last bar, or an empty string for an empty series.
func (s PriceSeries) LastDate() string {
	if s.IsEmpty() {
		return ""
	}

	return s.Bars[len(s.Bars)-1].Date
}

// FormatDate truncates t to its wall-clock calendar date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
