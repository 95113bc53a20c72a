package marketdata

import (
	"encoding/json"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/stockscraper/internal/types"
	"github.com/rxtech-lab/stockscraper/pkg/errors"
	"github.com/rxtech-lab/stockscraper/pkg/marketdata/writer"
)

const (
	// DefaultOutputDir is where tables are written when no directory is given.
	DefaultOutputDir = "data/stocks"
	// DefaultLookbackDays is the default distance between start and end.
	DefaultLookbackDays = 365 * 5
)

// DefaultTickers is the ticker list used when none is given.
var DefaultTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"}

// Config holds the parameters of a scraper run.
type Config struct {
	Tickers   []string                   `yaml:"tickers" json:"tickers" jsonschema:"title=Tickers,description=Ticker symbols to download (e.g. AAPL or BRK-B)" validate:"required,min=1,dive,required"`
	Start     optional.Option[time.Time] `yaml:"start" json:"start" jsonschema:"title=Start Date,description=First calendar date to download (YYYY-MM-DD). Defaults to five years before the end date"`
	End       optional.Option[time.Time] `yaml:"end" json:"end" jsonschema:"title=End Date,description=Calendar date the download stops before (YYYY-MM-DD). Defaults to today"`
	Interval  types.Interval             `yaml:"interval" json:"interval" jsonschema:"title=Interval,description=Bar interval,default=1d" validate:"required,oneof=1d 1wk 1mo"`
	OutputDir string                     `yaml:"output_dir" json:"output_dir" jsonschema:"title=Output Directory,description=Directory the tables are written to,default=data/stocks" validate:"required"`
	Format    writer.Format              `yaml:"format" json:"format" jsonschema:"title=Format,description=Table file format,default=csv" validate:"required,oneof=csv parquet"`
	Timeout   time.Duration              `yaml:"timeout" json:"timeout" jsonschema:"title=Timeout,description=HTTP timeout per request (e.g. 30s). Zero means no timeout" validate:"min=0"`
	BaseURL   string                     `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=Override of the Yahoo Finance API host" validate:"omitempty,url"`
}

// UnmarshalYAML reads dates as YYYY-MM-DD and the timeout as a Go duration string.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		Tickers   []string `yaml:"tickers"`
		Start     *string  `yaml:"start"`
		End       *string  `yaml:"end"`
		Interval  string   `yaml:"interval"`
		OutputDir string   `yaml:"output_dir"`
		Format    string   `yaml:"format"`
		Timeout   string   `yaml:"timeout"`
		BaseURL   string   `yaml:"base_url"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	c.Tickers = raw.Tickers
	c.Interval = types.Interval(raw.Interval)
	c.OutputDir = raw.OutputDir
	c.Format = writer.Format(raw.Format)
	c.BaseURL = raw.BaseURL

	if raw.Start != nil {
		start, err := ParseDate(*raw.Start)
		if err != nil {
			return err
		}

		c.Start = optional.Some(start)
	}

	if raw.End != nil {
		end, err := ParseDate(*raw.End)
		if err != nil {
			return err
		}

		c.End = optional.Some(end)
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid timeout %q", raw.Timeout)
		}

		c.Timeout = timeout
	}

	return nil
}

// LoadConfig reads a YAML config file. Fields it leaves out stay empty until ApplyDefaults.
func LoadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidParameter) || errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
			return config, err
		}

		return config, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	return config, nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(types.DateLayout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid date %q, expected YYYY-MM-DD", value)
	}

	return date, nil
}

// ApplyDefaults fills every unset field. The end date defaults to the calendar
// date of now and the start date to DefaultLookbackDays before now.
func (c *Config) ApplyDefaults(now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if len(c.Tickers) == 0 {
		c.Tickers = append([]string(nil), DefaultTickers...)
	}

	if c.End.IsNone() {
		c.End = optional.Some(today)
	}

	if c.Start.IsNone() {
		c.Start = optional.Some(today.AddDate(0, 0, -DefaultLookbackDays))
	}

	if c.Interval == "" {
		c.Interval = types.IntervalDaily
	}

	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	if c.Format == "" {
		c.Format = writer.FormatCSV
	}
}

// Validate checks the config. Date order is not checked: a start after the end
// runs and yields no data.
func (c *Config) Validate() error {
	if _, err := types.ParseInterval(string(c.Interval)); err != nil {
		return err
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if c.Start.IsNone() || c.End.IsNone() {
		return errors.New(errors.ErrCodeMissingParameter, "start and end dates must be set")
	}

	return nil
}

// RunParams converts the config into batch parameters.
func (c *Config) RunParams() RunParams {
	return RunParams{
		Tickers:   c.Tickers,
		StartDate: c.Start.TakeOr(time.Time{}),
		EndDate:   c.End.TakeOr(time.Time{}),
		Interval:  c.Interval,
	}
}

// GenerateSchema reflects the JSON schema of the YAML config file.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(optional.Option[time.Time]{}):
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date",
				}
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{
					Type:    "string",
					Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|ms|s|m|h))+$`,
				}
			case reflect.TypeOf(types.Interval("")):
				enum := make([]any, 0, len(types.AllIntervals))
				for _, interval := range types.AllIntervals {
					enum = append(enum, string(interval))
				}

				return &jsonschema.Schema{
					Type: "string",
					Enum: enum,
				}
			case reflect.TypeOf(writer.Format("")):
				enum := make([]any, 0, len(writer.AllFormats))
				for _, format := range writer.AllFormats {
					enum = append(enum, string(format))
				}

				return &jsonschema.Schema{
					Type: "string",
					Enum: enum,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "stockscraper-config"
	schema.Description = "Configuration schema for the stock scraper"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON returns the indented JSON schema document.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
