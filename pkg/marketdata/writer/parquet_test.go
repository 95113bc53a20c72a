package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
)

type ParquetWriterTestSuite struct {
	suite.Suite
	tempDir string
}

func TestParquetWriterSuite(t *testing.T) {
	suite.Run(t, new(ParquetWriterTestSuite))
}

func (suite *ParquetWriterTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

type parquetRow struct {
	date   time.Time
	open   float64
	high   float64
	low    float64
	close  float64
	volume int64
}

func (suite *ParquetWriterTestSuite) readParquet(path string) []parquetRow {
	db, err := sql.Open("duckdb", ":memory:")
	suite.Require().NoError(err)
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf(`SELECT "Date", "Open", "High", "Low", "Close", "Volume" FROM read_parquet('%s') ORDER BY "Date"`, escapeLiteral(path)))
	suite.Require().NoError(err)
	defer rows.Close()

	var result []parquetRow
	for rows.Next() {
		var row parquetRow
		suite.Require().NoError(rows.Scan(&row.date, &row.open, &row.high, &row.low, &row.close, &row.volume))
		result = append(result, row)
	}
	suite.Require().NoError(rows.Err())

	return result
}

func (suite *ParquetWriterTestSuite) TestExtension() {
	suite.Equal("parquet", NewParquetWriter(suite.tempDir).Extension())
}

func (suite *ParquetWriterTestSuite) TestWriteAndReadBack() {
	path, err := NewParquetWriter(suite.tempDir).Write(sampleSeries("AAPL"))
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(suite.tempDir, "AAPL.parquet"), path)

	rows := suite.readParquet(path)
	suite.Require().Len(rows, 2)

	suite.Equal("2023-06-01", types.FormatDate(rows[0].date.UTC()))
	suite.Equal(177.7, rows[0].open)
	suite.Equal(180.12, rows[0].high)
	suite.Equal(176.93, rows[0].low)
	suite.Equal(180.09, rows[0].close)
	suite.Equal(int64(68901800), rows[0].volume)
	suite.Equal("2023-06-02", types.FormatDate(rows[1].date.UTC()))
}

func (suite *ParquetWriterTestSuite) TestOverwrite() {
	writer := NewParquetWriter(suite.tempDir)

	_, err := writer.Write(sampleSeries("AAPL"))
	suite.Require().NoError(err)

	shorter := sampleSeries("AAPL")
	shorter.Bars = shorter.Bars[1:]

	path, err := writer.Write(shorter)
	suite.Require().NoError(err)

	rows := suite.readParquet(path)
	suite.Require().Len(rows, 1)
	suite.Equal(180.95, rows[0].close)
}

func (suite *ParquetWriterTestSuite) TestManyRowsSpanBatches() {
	series := types.PriceSeries{Ticker: "SPY", Interval: types.IntervalDaily}
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	base := sampleSeries("SPY").Bars[0]
	for i := 0; i < insertBatchSize*2+7; i++ {
		bar := base
		bar.Date = types.FormatDate(start.AddDate(0, 0, i))
		series.Bars = append(series.Bars, bar)
	}

	path, err := NewParquetWriter(suite.tempDir).Write(series)
	suite.Require().NoError(err)
	suite.Len(suite.readParquet(path), series.Len())
}

func (suite *ParquetWriterTestSuite) TestEmptySeries() {
	path, err := NewParquetWriter(suite.tempDir).Write(types.PriceSeries{Ticker: "EMPTY", Interval: types.IntervalDaily})
	suite.Require().NoError(err)
	suite.FileExists(path)
	suite.Empty(suite.readParquet(path))
}

func (suite *ParquetWriterTestSuite) TestInvalidDate() {
	series := sampleSeries("AAPL")
	series.Bars[0].Date = "June 1st"

	_, err := NewParquetWriter(suite.tempDir).Write(series)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *ParquetWriterTestSuite) TestWriteFailsWhenDirectoryIsAFile() {
	blocker := filepath.Join(suite.tempDir, "blocker")
	suite.Require().NoError(os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewParquetWriter(blocker).Write(sampleSeries("AAPL"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *ParquetWriterTestSuite) TestFailedWriteKeepsPreviousTable() {
	writer := NewParquetWriter(suite.tempDir)

	path, err := writer.Write(sampleSeries("AAPL"))
	suite.Require().NoError(err)

	broken := sampleSeries("AAPL")
	broken.Bars[0].Date = "06/01/2023"

	_, err = writer.Write(broken)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))

	suite.Len(suite.readParquet(path), 2)
}

func (suite *ParquetWriterTestSuite) TestFailedReplaceLeavesNoScratchFile() {
	target := filepath.Join(suite.tempDir, "AAPL.parquet")
	suite.Require().NoError(os.MkdirAll(filepath.Join(target, "keep"), 0755))

	_, err := NewParquetWriter(suite.tempDir).Write(sampleSeries("AAPL"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))

	leftovers, err := filepath.Glob(filepath.Join(suite.tempDir, ".*.tmp"))
	suite.Require().NoError(err)
	suite.Empty(leftovers)
}

func (suite *ParquetWriterTestSuite) TestCreateTableSQLFollowsPriceColumns() {
	suite.Equal(
		`CREATE TABLE price_bars ("Date" DATE, "Open" DOUBLE, "High" DOUBLE, "Low" DOUBLE, "Close" DOUBLE, "Volume" BIGINT)`,
		createTableSQL(),
	)
}

