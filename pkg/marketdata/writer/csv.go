package writer

import (
	"os"

	"github.com/gocarina/gocsv"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

// CSVWriter writes comma separated tables with the header
// Date,Open,High,Low,Close,Volume.
type CSVWriter struct {
	outputDir string
}

// NewCSVWriter creates a CSV table writer rooted at outputDir.
func NewCSVWriter(outputDir string) TableWriter {
	return &CSVWriter{
		outputDir: outputDir,
	}
}

func (w *CSVWriter) Extension() string {
	return string(FormatCSV)
}

// Write implements TableWriter. The header row is emitted even for an empty series.
func (w *CSVWriter) Write(series types.PriceSeries) (string, error) {
	if err := ensureDir(w.outputDir); err != nil {
		return "", err
	}

	path := TablePath(w.outputDir, series.Ticker, w.Extension())

	file, err := createTemp(w.outputDir, series.Ticker, w.Extension())
	if err != nil {
		return "", err
	}

	tempPath := file.Name()

	bars := series.Bars
	if bars == nil {
		bars = []types.PriceBar{}
	}

	if err := gocsv.MarshalFile(&bars, file); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)

		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to write %s", path)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)

		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to close %s", tempPath)
	}

	if err := commitTemp(tempPath, path); err != nil {
		return "", err
	}

	return path, nil
}

// ReadCSV loads a table written by CSVWriter.
func ReadCSV(path string) ([]types.PriceBar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to open %s", path)
	}
	defer file.Close()

	var bars []types.PriceBar
	if err := gocsv.UnmarshalFile(file, &bars); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to parse %s", path)
	}

	return bars, nil
}
