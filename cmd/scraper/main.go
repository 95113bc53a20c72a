package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/stockscraper/internal/logger"
	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/internal/version"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/writer"
)

// resolveConfig merges defaults, the optional config file and explicitly set flags,
// in increasing order of precedence.
func resolveConfig(cmd *cli.Command, now time.Time) (marketdata.Config, error) {
	var config marketdata.Config

	if path := cmd.String("config"); path != "" {
		loaded, err := marketdata.LoadConfig(path)
		if err != nil {
			return config, err
		}

		config = loaded
	}

	tickers := splitTickers(cmd.StringSlice("tickers"), cmd.Args().Slice())
	if len(tickers) > 0 {
		config.Tickers = tickers
	}

	if cmd.IsSet("start") {
		start, err := marketdata.ParseDate(cmd.String("start"))
		if err != nil {
			return config, err
		}

		config.Start = optional.Some(start)
	}

	if cmd.IsSet("end") {
		end, err := marketdata.ParseDate(cmd.String("end"))
		if err != nil {
			return config, err
		}

		config.End = optional.Some(end)
	}

	if cmd.IsSet("interval") {
		interval, err := types.ParseInterval(cmd.String("interval"))
		if err != nil {
			return config, err
		}

		config.Interval = interval
	}

	if cmd.IsSet("output-dir") {
		config.OutputDir = cmd.String("output-dir")
	}

	if cmd.IsSet("format") {
		config.Format = writer.Format(cmd.String("format"))
	}

	if cmd.IsSet("timeout") {
		config.Timeout = cmd.Duration("timeout")
	}

	config.ApplyDefaults(now)

	return config, nil
}

// splitTickers joins flag values and positional arguments, trimming blanks.
func splitTickers(flagValues []string, args []string) []string {
	tickers := make([]string, 0, len(flagValues)+len(args))

	for _, value := range append(append([]string{}, flagValues...), args...) {
		for _, ticker := range strings.Split(value, ",") {
			if ticker = strings.TrimSpace(ticker); ticker != "" {
				tickers = append(tickers, ticker)
			}
		}
	}

	return tickers
}

// intervalUsage lists every accepted interval with its description.
func intervalUsage() string {
	choices := make([]string, 0, len(types.AllIntervals))
	for _, interval := range types.AllIntervals {
		choices = append(choices, fmt.Sprintf("%s %s", interval, interval.Description()))
	}

	return "Bar interval (" + strings.Join(choices, ", ") + ")"
}

func scrapeAction(now func() time.Time) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		config, err := resolveConfig(cmd, now())
		if err != nil {
			return err
		}

		appLogger, err := logger.NewLogger(cmd.String("log-level"))
		if err != nil {
			return err
		}
		defer func() { _ = appLogger.Sync() }()

		opts := []marketdata.RunnerOption{marketdata.WithProgressWriter(cmd.Root().ErrWriter)}
		if cmd.Bool("no-progress") {
			opts = append(opts, marketdata.WithoutProgress())
		}

		runner, err := marketdata.NewRunnerFromConfig(config, appLogger, opts...)
		if err != nil {
			return err
		}

		params := config.RunParams()

		appLogger.Debug("Resolved parameters",
			zap.Strings("tickers", params.Tickers),
			zap.String("start", types.FormatDate(params.StartDate)),
			zap.String("end", types.FormatDate(params.EndDate)),
			zap.String("interval", string(params.Interval)),
			zap.String("output_dir", config.OutputDir),
			zap.String("format", string(config.Format)),
		)

		// per-ticker failures are reported in the log and never change the exit status
		runner.Run(ctx, params)

		return nil
	}
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var config marketdata.Config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func newCommand(stdout io.Writer, stderr io.Writer, now func() time.Time) *cli.Command {
	return &cli.Command{
		Name:      "scraper",
		Usage:     "Download historical stock prices into one table per ticker",
		ArgsUsage: "[TICKER...]",
		Version:   version.GetVersion(),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "tickers",
				Aliases: []string{"t"},
				Usage:   fmt.Sprintf("Ticker symbols, repeatable or comma separated (default: %s)", strings.Join(marketdata.DefaultTickers, ",")),
			},
			&cli.StringFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   fmt.Sprintf("Start date in `YYYY-MM-DD` format (default: %d days before the end date)", marketdata.DefaultLookbackDays),
			},
			&cli.StringFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format, exclusive (default: today)",
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   intervalUsage(),
				Value:   string(types.IntervalDaily),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory the tables are written to",
				Value:   marketdata.DefaultOutputDir,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Table format (csv, parquet)",
				Value:   string(writer.FormatCSV),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP timeout per request, 0 means none",
			},
		},
		Action: scrapeAction(now),
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
		},
	}
}

func main() {
	cmd := newCommand(os.Stdout, os.Stderr, time.Now)

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
