package writer

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

// insertBatchSize bounds the number of rows bound into a single INSERT.
const insertBatchSize = 500

// columnTypes maps every table column to its DuckDB type.
var columnTypes = map[string]string{
	"Date":   "DATE",
	"Open":   "DOUBLE",
	"High":   "DOUBLE",
	"Low":    "DOUBLE",
	"Close":  "DOUBLE",
	"Volume": "BIGINT",
}

// ParquetWriter writes tables through an in-memory DuckDB database exported
// with COPY ... (FORMAT PARQUET). Columns match the CSV header.
type ParquetWriter struct {
	outputDir string
}

// NewParquetWriter creates a Parquet table writer rooted at outputDir.
func NewParquetWriter(outputDir string) TableWriter {
	return &ParquetWriter{
		outputDir: outputDir,
	}
}

func (w *ParquetWriter) Extension() string {
	return string(FormatParquet)
}

// Write implements TableWriter.
func (w *ParquetWriter) Write(series types.PriceSeries) (string, error) {
	if err := ensureDir(w.outputDir); err != nil {
		return "", err
	}

	outputPath := TablePath(w.outputDir, series.Ticker, w.Extension())

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to open DuckDB connection", err)
	}
	defer db.Close()

	if _, err := db.Exec(createTableSQL()); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create table", err)
	}

	if err := insertBars(db, series.Bars); err != nil {
		return "", err
	}

	file, err := createTemp(w.outputDir, series.Ticker, w.Extension())
	if err != nil {
		return "", err
	}

	tempPath := file.Name()
	_ = file.Close()

	_, err = db.Exec(fmt.Sprintf(`COPY (SELECT * FROM price_bars ORDER BY "Date") TO '%s' (FORMAT PARQUET)`, escapeLiteral(tempPath)))
	if err != nil {
		_ = os.Remove(tempPath)

		return "", errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to export %s", outputPath)
	}

	if err := commitTemp(tempPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

func insertBars(db *sql.DB, bars []types.PriceBar) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to begin transaction", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for start := 0; start < len(bars); start += insertBatchSize {
		end := min(start+insertBatchSize, len(bars))

		builder := sq.Insert("price_bars").Columns(quotedColumns()...)

		for _, bar := range bars[start:end] {
			date, err := bar.Time()
			if err != nil {
				return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "invalid bar date %q", bar.Date)
			}

			builder = builder.Values(
				date,
				bar.Open.InexactFloat64(),
				bar.High.InexactFloat64(),
				bar.Low.InexactFloat64(),
				bar.Close.InexactFloat64(),
				bar.Volume,
			)
		}

		if _, err := builder.RunWith(tx).Exec(); err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to insert bars", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to commit transaction", err)
	}

	return nil
}

func escapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func quotedColumns() []string {
	columns := make([]string, 0, len(types.PriceColumns))
	for _, column := range types.PriceColumns {
		columns = append(columns, `"`+column+`"`)
	}

	return columns
}

func createTableSQL() string {
	quoted := quotedColumns()

	definitions := make([]string, 0, len(quoted))
	for i, column := range types.PriceColumns {
		definitions = append(definitions, quoted[i]+" "+columnTypes[column])
	}

	return "CREATE TABLE price_bars (" + strings.Join(definitions, ", ") + ")"
}
