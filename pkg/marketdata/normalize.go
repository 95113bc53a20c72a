package marketdata

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/provider"
)

// Normalize converts a provider response into an ascending, date-unique PriceSeries.
//
// Each timestamp is truncated to its calendar date in its own location. Only the
// Date/Open/High/Low/Close/Volume columns survive; adjusted close, dividends and
// splits are dropped. Placeholder rows missing any of the four prices are skipped
// and a missing volume becomes zero. When two rows land on the same date the later
// row wins.
//
// A response without usable rows yields an ErrCodeNoDataFound error.
func Normalize(raw provider.RawSeries) (types.PriceSeries, error) {
	series := types.PriceSeries{
		Ticker:   raw.Ticker,
		Interval: raw.Interval,
		Bars:     make([]types.PriceBar, 0, len(raw.Bars)),
	}

	if raw.IsEmpty() {
		return series, errors.Newf(errors.ErrCodeNoDataFound, "no data returned for %s", raw.Ticker)
	}

	indexByDate := make(map[string]int, len(raw.Bars))

	for _, rawBar := range raw.Bars {
		bar, ok := toPriceBar(rawBar)
		if !ok {
			continue
		}

		if i, seen := indexByDate[bar.Date]; seen {
			series.Bars[i] = bar

			continue
		}

		indexByDate[bar.Date] = len(series.Bars)
		series.Bars = append(series.Bars, bar)
	}

	if series.IsEmpty() {
		return series, errors.Newf(errors.ErrCodeNoDataFound, "no usable rows returned for %s", raw.Ticker)
	}

	slices.SortStableFunc(series.Bars, func(a, b types.PriceBar) int {
		return strings.Compare(a.Date, b.Date)
	})

	return series, nil
}

func toPriceBar(raw provider.RawBar) (types.PriceBar, bool) {
	if raw.Open.IsNone() || raw.High.IsNone() || raw.Low.IsNone() || raw.Close.IsNone() {
		return types.PriceBar{}, false
	}

	return types.PriceBar{
		Date:   types.FormatDate(raw.Timestamp),
		Open:   decimal.NewFromFloat(raw.Open.Unwrap()),
		High:   decimal.NewFromFloat(raw.High.Unwrap()),
		Low:    decimal.NewFromFloat(raw.Low.Unwrap()),
		Close:  decimal.NewFromFloat(raw.Close.Unwrap()),
		Volume: raw.Volume.TakeOr(0),
	}, true
}
