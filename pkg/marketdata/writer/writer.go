package writer

import (
	"os"
	"path/filepath"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

// Format selects the on-disk table format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// AllFormats lists the supported table formats.
var AllFormats = []Format{FormatCSV, FormatParquet}

// TableWriter persists one price table per ticker.
type TableWriter interface {
	// Extension returns the file extension without the leading dot.
	Extension() string
	// Write stores the series as <dir>/<ticker>.<extension>, creating the
	// directory when needed and replacing any existing file.
	Write(series types.PriceSeries) (outputPath string, err error)
}

// NewTableWriter creates the writer for the given format rooted at outputDir.
func NewTableWriter(format Format, outputDir string) (TableWriter, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(outputDir), nil
	case FormatParquet:
		return NewParquetWriter(outputDir), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "unsupported table format: %s", format)
	}
}

// TablePath returns the file path a writer uses for ticker.
func TablePath(outputDir string, ticker string, extension string) string {
	return filepath.Join(outputDir, ticker+"."+extension)
}

// ensureDir creates outputDir and its parents. An existing directory is not an error.
func ensureDir(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create output directory %s", outputDir)
	}

	return nil
}

// createTemp opens a hidden scratch file next to the table at path. Tables are
// moved over with commitTemp so a failed write leaves the previous table intact.
func createTemp(outputDir string, ticker string, extension string) (*os.File, error) {
	file, err := os.CreateTemp(outputDir, "."+ticker+".*."+extension+".tmp")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create temp file for %s", ticker)
	}

	// CreateTemp opens the file 0600; tables are published 0644
	if err := file.Chmod(0644); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())

		return nil, errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to set mode of temp file for %s", ticker)
	}

	return file, nil
}

// commitTemp renames tempPath over path. The temp file is removed when the rename fails.
func commitTemp(tempPath string, path string) error {
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)

		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to replace %s", path)
	}

	return nil
}
