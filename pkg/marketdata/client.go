package marketdata

import (
	"github.com/rxtech-lab/stockscraper/internal/logger"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/provider"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/writer"
)

// NewRunnerFromConfig wires the Yahoo provider and the table writer selected by
// config into a Runner. The config is validated first.
func NewRunnerFromConfig(config Config, log *logger.Logger, opts ...RunnerOption) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tableWriter, err := writer.NewTableWriter(config.Format, config.OutputDir)
	if err != nil {
		return nil, err
	}

	yahoo := provider.NewYahooClient(provider.YahooConfig{
		BaseURL:   config.BaseURL,
		UserAgent: "",
		Timeout:   config.Timeout,
	})

	if log != nil {
		log = log.Named(yahoo.Name())
	}

	return NewRunner(yahoo, tableWriter, log, opts...), nil
}
