package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

const (
	// DefaultYahooBaseURL is the public Yahoo Finance chart API host.
	DefaultYahooBaseURL = "https://query2.finance.yahoo.com"
	// DefaultUserAgent is sent with every request; the chart API rejects empty agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	chartPath = "/v8/finance/chart/{ticker}"
)

// YahooConfig configures the Yahoo Finance client.
type YahooConfig struct {
	// BaseURL overrides DefaultYahooBaseURL, mostly for tests.
	BaseURL string
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
}

// YahooClient fetches historical bars from the Yahoo Finance v8 chart endpoint.
type YahooClient struct {
	client *resty.Client

	mu        sync.Mutex
	locations map[string]*time.Location
}

// NewYahooClient creates a Yahoo Finance provider.
func NewYahooClient(config YahooConfig) *YahooClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(config.Timeout)

	return &YahooClient{
		client:    client,
		mu:        sync.Mutex{},
		locations: make(map[string]*time.Location),
	}
}

func (c *YahooClient) Name() string { return "yahoo" }

// chartResponse is the response envelope of the chart API.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GmtOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]dividendEvent `json:"dividends"`
		Splits    map[string]splitEvent    `json:"splits"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []optional.Option[float64] `json:"open"`
			High   []optional.Option[float64] `json:"high"`
			Low    []optional.Option[float64] `json:"low"`
			Close  []optional.Option[float64] `json:"close"`
			Volume []optional.Option[int64]   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []optional.Option[float64] `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type dividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type splitEvent struct {
	Date        int64   `json:"date"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// Fetch implements Provider.
// The window bounds are sent as local midnight in the exchange timezone. The first
// request for a ticker uses UTC midnight and is repeated once the reported
// timezone moves the bounds; the timezone is then remembered for the ticker.
// A window whose start is not before its end is answered with an empty series
// without contacting Yahoo.
func (c *YahooClient) Fetch(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, interval types.Interval) (RawSeries, error) {
	empty := RawSeries{Ticker: ticker, Interval: interval, Timezone: "", Bars: nil}

	if !midnightIn(startDate, time.UTC).Before(midnightIn(endDate, time.UTC)) {
		return empty, nil
	}

	location, known := c.location(ticker)
	if !known {
		location = time.UTC
	}

	result, found, err := c.chart(ctx, ticker, midnightIn(startDate, location), midnightIn(endDate, location), interval)
	if err != nil {
		return empty, err
	}

	if found && !known {
		exchange := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GmtOffset)
		c.setLocation(ticker, exchange)

		if !sameWindow(startDate, endDate, location, exchange) {
			result, found, err = c.chart(ctx, ticker, midnightIn(startDate, exchange), midnightIn(endDate, exchange), interval)
			if err != nil {
				return empty, err
			}
		}
	}

	if !found {
		return empty, nil
	}

	return toRawSeries(ticker, interval, result), nil
}

// chart performs one chart request. found is false when Yahoo returned no result.
func (c *YahooClient) chart(ctx context.Context, ticker string, period1 time.Time, period2 time.Time, interval types.Interval) (chartResult, bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"period1":              strconv.FormatInt(period1.Unix(), 10),
			"period2":              strconv.FormatInt(period2.Unix(), 10),
			"interval":             string(interval),
			"events":               "div,splits",
			"includeAdjustedClose": "true",
		}).
		Get(chartPath)
	if err != nil {
		return chartResult{}, false, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "yahoo request for %s failed", ticker)
	}

	var chart chartResponse

	decodeErr := json.Unmarshal(resp.Body(), &chart)

	if resp.IsError() {
		if decodeErr == nil && chart.Chart.Error != nil {
			return chartResult{}, false, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "yahoo returned status %d for %s: %s",
				resp.StatusCode(), ticker, chart.Chart.Error.Description)
		}

		return chartResult{}, false, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "yahoo returned status %d for %s", resp.StatusCode(), ticker)
	}

	if decodeErr != nil {
		return chartResult{}, false, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, decodeErr, "failed to decode yahoo response for %s", ticker)
	}

	if chart.Chart.Error != nil {
		return chartResult{}, false, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "yahoo api error for %s: %s", ticker, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 {
		return chartResult{}, false, nil
	}

	return chart.Chart.Result[0], true, nil
}

func (c *YahooClient) location(ticker string) (*time.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	location, ok := c.locations[ticker]

	return location, ok
}

func (c *YahooClient) setLocation(ticker string, location *time.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.locations[ticker] = location
}

// midnightIn returns the start of date's calendar day in location. Only the
// year, month and day of date are used.
func midnightIn(date time.Time, location *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, location)
}

func sameWindow(startDate time.Time, endDate time.Time, a *time.Location, b *time.Location) bool {
	return midnightIn(startDate, a).Equal(midnightIn(startDate, b)) &&
		midnightIn(endDate, a).Equal(midnightIn(endDate, b))
}

func toRawSeries(ticker string, interval types.Interval, result chartResult) RawSeries {
	location := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GmtOffset)

	series := RawSeries{
		Ticker:   ticker,
		Interval: interval,
		Timezone: result.Meta.ExchangeTimezoneName,
		Bars:     nil,
	}

	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return series
	}

	quote := result.Indicators.Quote[0]

	var adjClose []optional.Option[float64]
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	dividends := make(map[string]float64, len(result.Events.Dividends))
	for _, event := range result.Events.Dividends {
		dividends[types.FormatDate(time.Unix(event.Date, 0).In(location))] += event.Amount
	}

	splits := make(map[string]float64, len(result.Events.Splits))
	for _, event := range result.Events.Splits {
		if event.Denominator == 0 {
			continue
		}

		splits[types.FormatDate(time.Unix(event.Date, 0).In(location))] = event.Numerator / event.Denominator
	}

	series.Bars = make([]RawBar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		timestamp := time.Unix(ts, 0).In(location)
		date := types.FormatDate(timestamp)

		series.Bars = append(series.Bars, RawBar{
			Timestamp:   timestamp,
			Open:        cell(quote.Open, i),
			High:        cell(quote.High, i),
			Low:         cell(quote.Low, i),
			Close:       cell(quote.Close, i),
			Volume:      cell(quote.Volume, i),
			AdjClose:    cell(adjClose, i),
			Dividends:   dividends[date],
			StockSplits: splits[date],
		})
	}

	return series
}

// cell returns values[i], or None when the column is shorter than the timestamp list.
func cell[T any](values []optional.Option[T], i int) optional.Option[T] {
	if i < len(values) {
		return values[i]
	}

	return optional.None[T]()
}

// exchangeLocation resolves the exchange timezone, falling back to the fixed
// offset Yahoo reports when the tz database has no such zone.
func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if location, err := time.LoadLocation(name); err == nil {
			return location
		}
	}

	if gmtOffset == 0 && name == "" {
		return time.UTC
	}

	return time.FixedZone(name, gmtOffset)
}
