package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/provider"
)

// DataGenerator generates realistic provider responses for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how a raw series is generated.
type GeneratorConfig struct {
	// Ticker is the symbol stamped on the series (e.g., "AAPL", "SPY")
	Ticker string
	// Interval is the bar granularity; it also controls the spacing of timestamps
	Interval types.Interval
	// StartTime is the timestamp of the first bar, including its location
	StartTime time.Time
	// Count is the number of bars to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
}

// DefaultConfig returns daily bars stamped at the New York open.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Ticker:       "TEST",
		Interval:     types.IntervalDaily,
		StartTime:    time.Date(2024, 1, 2, 9, 30, 0, 0, time.FixedZone("EST", -5*60*60)),
		Count:        20,
		InitialPrice: 100.0,
		Volatility:   0.01,
		VolumeBase:   1_000_000,
	}
}

// Generate creates a raw series following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) provider.RawSeries {
	bars := make([]provider.RawBar, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normal sample
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		close := open * (1 + config.Volatility*z)
		if close <= 0 {
			close = open * 0.99
		}

		high := math.Max(open, close) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, close) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volume := int64(config.VolumeBase * (0.7 + g.rng.Float64()*0.6))

		bars[i] = provider.RawBar{
			Timestamp:   currentTime,
			Open:        optional.Some(roundToDecimals(open, 4)),
			High:        optional.Some(roundToDecimals(high, 4)),
			Low:         optional.Some(roundToDecimals(low, 4)),
			Close:       optional.Some(roundToDecimals(close, 4)),
			Volume:      optional.Some(volume),
			AdjClose:    optional.Some(roundToDecimals(close*0.98, 4)),
			Dividends:   0,
			StockSplits: 0,
		}

		currentPrice = close
		currentTime = nextBarTime(currentTime, config.Interval)
	}

	return provider.RawSeries{
		Ticker:   config.Ticker,
		Interval: config.Interval,
		Timezone: config.StartTime.Location().String(),
		Bars:     bars,
	}
}

// GenerateFor is a convenience wrapper producing count daily bars for ticker
// with a fixed seed.
func GenerateFor(ticker string, count int) provider.RawSeries {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Ticker = ticker
	config.Count = count

	return gen.Generate(config)
}

func nextBarTime(t time.Time, interval types.Interval) time.Time {
	switch interval {
	case types.IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case types.IntervalMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
