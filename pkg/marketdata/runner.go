package marketdata

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/stockscraper/internal/logger"
	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/provider"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/writer"
)

// ResultKind classifies the outcome of one ticker.
type ResultKind string

const (
	ResultSuccess     ResultKind = "success"
	ResultNoData      ResultKind = "no-data"
	ResultFetchFailed ResultKind = "fetch-failed"
	ResultWriteFailed ResultKind = "write-failed"
)

// TickerResult is the outcome of fetching and persisting one ticker.
type TickerResult struct {
	Ticker string
	Kind   ResultKind
	// Path is the written table; empty unless Kind is ResultSuccess.
	Path string
	// Rows is the number of bars written.
	Rows int
	Err  error
}

// OK reports whether the ticker was written.
func (r TickerResult) OK() bool {
	return r.Kind == ResultSuccess
}

// Summary is the tally of a run. Results keep the order tickers were supplied in.
type Summary struct {
	RunID      string
	Successful int
	Failed     int
	Results    []TickerResult
}

// RunParams holds the resolved parameters of a batch run.
type RunParams struct {
	Tickers   []string
	StartDate time.Time
	EndDate   time.Time
	Interval  types.Interval
}

// Runner downloads tickers one after another and persists each series.
type Runner struct {
	provider provider.Provider
	writer   writer.TableWriter
	logger   *logger.Logger

	progress     io.Writer
	showProgress bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProgressWriter renders the progress bar to w instead of stderr.
func WithProgressWriter(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.progress = w
	}
}

// WithoutProgress disables the progress bar.
func WithoutProgress() RunnerOption {
	return func(r *Runner) {
		r.showProgress = false
	}
}

// NewRunner creates a Runner. A nil logger discards all log output.
func NewRunner(marketProvider provider.Provider, tableWriter writer.TableWriter, log *logger.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.NewNop()
	}

	runner := &Runner{
		provider:     marketProvider,
		writer:       tableWriter,
		logger:       log,
		progress:     os.Stderr,
		showProgress: true,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run processes every ticker in order. Per-ticker failures are recorded in the
// summary and never abort the batch.
func (r *Runner) Run(ctx context.Context, params RunParams) Summary {
	summary := Summary{
		RunID:      uuid.New().String(),
		Successful: 0,
		Failed:     0,
		Results:    make([]TickerResult, 0, len(params.Tickers)),
	}

	log := r.logger.With(zap.String("run_id", summary.RunID))

	bar := r.newProgressBar(len(params.Tickers))

	for _, ticker := range params.Tickers {
		result := r.runTicker(ctx, log, ticker, params)
		summary.Results = append(summary.Results, result)

		if result.OK() {
			summary.Successful++
		} else {
			summary.Failed++
		}

		_ = bar.Add(1)
	}

	_ = bar.Finish()

	log.Info(fmt.Sprintf("Download complete. Successful: %d, Failed: %d", summary.Successful, summary.Failed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
	)

	return summary
}

func (r *Runner) runTicker(ctx context.Context, log *zap.Logger, ticker string, params RunParams) TickerResult {
	log = log.With(zap.String("ticker", ticker))

	log.Info(fmt.Sprintf("Downloading data for %s from %s to %s",
		ticker, types.FormatDate(params.StartDate), types.FormatDate(params.EndDate)),
		zap.String("interval", string(params.Interval)),
	)

	raw, err := r.provider.Fetch(ctx, ticker, params.StartDate, params.EndDate, params.Interval)
	if err != nil {
		log.Error(fmt.Sprintf("Error downloading data for %s", ticker), zap.Error(err))

		return TickerResult{Ticker: ticker, Kind: ResultFetchFailed, Path: "", Rows: 0, Err: err}
	}

	// the table is named after the requested symbol, whatever the provider echoed
	raw.Ticker = ticker

	series, err := Normalize(raw)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNoDataFound) {
			log.Warn(fmt.Sprintf("No data found for %s", ticker), zap.Error(err))

			return TickerResult{Ticker: ticker, Kind: ResultNoData, Path: "", Rows: 0, Err: err}
		}

		log.Error(fmt.Sprintf("Error processing data for %s", ticker), zap.Error(err))

		return TickerResult{Ticker: ticker, Kind: ResultFetchFailed, Path: "", Rows: 0, Err: err}
	}

	path, err := r.writer.Write(series)
	if err != nil {
		log.Error(fmt.Sprintf("Error saving data for %s", ticker), zap.Error(err))

		return TickerResult{Ticker: ticker, Kind: ResultWriteFailed, Path: "", Rows: 0, Err: err}
	}

	log.Info(fmt.Sprintf("Saved %s data to %s", ticker, path),
		zap.String("path", path),
		zap.Int("rows", series.Len()),
		zap.String("from", series.FirstDate()),
		zap.String("to", series.LastDate()),
	)

	return TickerResult{Ticker: ticker, Kind: ResultSuccess, Path: path, Rows: series.Len(), Err: nil}
}

func (r *Runner) newProgressBar(total int) *progressbar.ProgressBar {
	if !r.showProgress {
		return progressbar.DefaultSilent(int64(total))
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetDescription("Downloading tickers"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
