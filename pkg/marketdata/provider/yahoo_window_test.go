package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/stockscraper/internal/types"
)

// exchange describes how a fake exchange stamps its bars.
type exchange struct {
	zone      string
	gmtOffset int
	openHour  int
	openMin   int
}

var exchanges = map[string]exchange{
	"AAPL":   {zone: "America/New_York", gmtOffset: -4 * 3600, openHour: 9, openMin: 30},
	"7203.T": {zone: "Asia/Tokyo", gmtOffset: 9 * 3600, openHour: 9, openMin: 0},
	"AIR.NZ": {zone: "Pacific/Auckland", gmtOffset: 12 * 3600, openHour: 10, openMin: 0},
}

// YahooWindowTestSuite serves bars like the chart API does: stamped in the
// exchange timezone and filtered on [period1, period2).
type YahooWindowTestSuite struct {
	suite.Suite
	server *httptest.Server

	mu          sync.Mutex
	lastPeriod1 int64
	lastPeriod2 int64
}

func TestYahooWindowSuite(t *testing.T) {
	suite.Run(t, new(YahooWindowTestSuite))
}

func (suite *YahooWindowTestSuite) SetupTest() {
	suite.server = httptest.NewServer(http.HandlerFunc(suite.serveChart))
}

func (suite *YahooWindowTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *YahooWindowTestSuite) serveChart(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
	ex := exchanges[ticker]

	location, err := time.LoadLocation(ex.zone)
	if err != nil {
		location = time.FixedZone(ex.zone, ex.gmtOffset)
	}

	period1, _ := strconv.ParseInt(r.URL.Query().Get("period1"), 10, 64)
	period2, _ := strconv.ParseInt(r.URL.Query().Get("period2"), 10, 64)

	suite.mu.Lock()
	suite.lastPeriod1 = period1
	suite.lastPeriod2 = period2
	suite.mu.Unlock()

	var stamps []time.Time

	switch types.Interval(r.URL.Query().Get("interval")) {
	case types.IntervalMonthly:
		for month := time.March; month <= time.September; month++ {
			stamps = append(stamps, time.Date(2023, month, 1, 0, 0, 0, 0, location))
		}
	default:
		for day := time.Date(2023, 5, 1, ex.openHour, ex.openMin, 0, 0, location); day.Month() <= time.July; day = day.AddDate(0, 0, 1) {
			stamps = append(stamps, day)
		}
	}

	timestamps := []int64{}
	prices := []float64{}
	volumes := []int64{}

	for _, stamp := range stamps {
		if stamp.Unix() < period1 || stamp.Unix() >= period2 {
			continue
		}

		timestamps = append(timestamps, stamp.Unix())
		prices = append(prices, 100)
		volumes = append(volumes, 1000)
	}

	body := map[string]any{
		"chart": map[string]any{
			"error": nil,
			"result": []any{map[string]any{
				"meta":      map[string]any{"symbol": ticker, "exchangeTimezoneName": ex.zone, "gmtoffset": ex.gmtOffset},
				"timestamp": timestamps,
				"indicators": map[string]any{
					"quote": []any{map[string]any{
						"open": prices, "high": prices, "low": prices, "close": prices, "volume": volumes,
					}},
				},
			}},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (suite *YahooWindowTestSuite) TestWindowFollowsExchangeCalendar() {
	testCases := []struct {
		name      string
		ticker    string
		interval  types.Interval
		start     time.Time
		end       time.Time
		wantDates []string
	}{
		{
			name:      "new york daily",
			ticker:    "AAPL",
			interval:  types.IntervalDaily,
			start:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-06-01", "2023-06-02"},
		},
		{
			name:      "tokyo daily",
			ticker:    "7203.T",
			interval:  types.IntervalDaily,
			start:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-06-01", "2023-06-02"},
		},
		{
			name:      "auckland daily",
			ticker:    "AIR.NZ",
			interval:  types.IntervalDaily,
			start:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-06-01", "2023-06-02"},
		},
		{
			name:      "new york monthly",
			ticker:    "AAPL",
			interval:  types.IntervalMonthly,
			start:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-05-01", "2023-06-01"},
		},
		{
			name:      "tokyo monthly",
			ticker:    "7203.T",
			interval:  types.IntervalMonthly,
			start:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-05-01", "2023-06-01"},
		},
		{
			name:      "auckland monthly",
			ticker:    "AIR.NZ",
			interval:  types.IntervalMonthly,
			start:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
			wantDates: []string{"2023-05-01", "2023-06-01"},
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			client := NewYahooClient(YahooConfig{BaseURL: suite.server.URL, UserAgent: "", Timeout: 5 * time.Second})

			series, err := client.Fetch(context.Background(), tc.ticker, tc.start, tc.end, tc.interval)
			suite.Require().NoError(err)

			dates := make([]string, 0, len(series.Bars))
			for _, bar := range series.Bars {
				dates = append(dates, types.FormatDate(bar.Timestamp))
			}

			suite.Equal(tc.wantDates, dates)

			location, err := time.LoadLocation(exchanges[tc.ticker].zone)
			suite.Require().NoError(err)

			suite.mu.Lock()
			defer suite.mu.Unlock()
			suite.Equal(midnightIn(tc.start, location).Unix(), suite.lastPeriod1)
			suite.Equal(midnightIn(tc.end, location).Unix(), suite.lastPeriod2)
		})
	}
}
