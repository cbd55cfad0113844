package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"upi-transaction-lookup/internal/cache"
	"upi-transaction-lookup/internal/generator"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/reporter"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/shopspring/decimal"
)

// CreateSearchConfig creates a search configuration with the specified tolerances
func CreateSearchConfig(timeTolerance time.Duration, amountTolerance float64, maxResults int) (*matcher.SearchConfig, error) {
	config := matcher.DefaultSearchConfig()

	config.TimeTolerance = timeTolerance
	config.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	if maxResults > 0 {
		config.DefaultMaxResults = maxResults
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, showDescriptions bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()

	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	config.ShowDescriptions = showDescriptions

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}
	return config, nil
}

// CreateLoggerConfig maps CLI log settings onto a logger configuration.
// verbose forces debug level.
func CreateLoggerConfig(level, format, file string, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()

	if level != "" {
		config.Level = logger.Level(strings.ToLower(level))
	}
	if verbose {
		config.Level = logger.DebugLevel
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	if file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}
	return config, nil
}

// CreateStoreOptions creates snapshot store options. timeZone must be a
// location name known to the system.
func CreateStoreOptions(debounce time.Duration, timeZone string) (*snapshot.StoreOptions, error) {
	options := snapshot.DefaultStoreOptions()

	if debounce < 0 {
		return nil, fmt.Errorf("watch debounce cannot be negative: %s", debounce)
	}
	if debounce > 0 {
		options.Debounce = debounce
	}

	if timeZone != "" {
		if _, err := time.LoadLocation(timeZone); err != nil {
			return nil, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
		}
		options.TimeZone = timeZone
	}

	return options, nil
}

// CreateCacheConfig creates a Redis cache configuration. An empty address
// leaves caching disabled.
func CreateCacheConfig(addr, password string, db int, ttl time.Duration) (*cache.Config, error) {
	config := cache.DefaultConfig()

	config.Addr = strings.TrimSpace(addr)
	config.Password = password
	config.DB = db
	if ttl != 0 {
		config.TTL = ttl
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	return config, nil
}

// CreatePostgresConfig creates the configuration of a Postgres record source
func CreatePostgresConfig(dsn, table string, newestFirst bool) (snapshot.PostgresConfig, error) {
	config := snapshot.PostgresConfig{
		DSN:              dsn,
		Table:            table,
		OrderNewestFirst: newestFirst,
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid postgres config: %w", err)
	}
	return config, nil
}

// CreateGeneratorConfig creates a generator configuration. A zero seed
// is replaced with a time-based one.
func CreateGeneratorConfig(count, days int, seed int64, failureReasons bool) (*generator.Config, error) {
	config := generator.DefaultConfig()

	config.Count = count
	config.Days = days
	if seed != 0 {
		config.Seed = seed
	}
	config.WithFailureReasons = failureReasons

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return config, nil
}

// ConfigFileError reports a config or dotenv file that cannot be read
func ConfigFileError(path string, err error) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, "config_file", path, err).
		WithSuggestion("Check that the file exists and its syntax is valid")
}

// InvalidSettingError reports a setting rejected by validation
func InvalidSettingError(setting string, err error) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, setting, nil, err)
}
