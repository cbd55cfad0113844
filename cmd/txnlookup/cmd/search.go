package cmd

import (
	"context"
	"fmt"
	"time"

	"upi-transaction-lookup/cmd/txnlookup/config"
	"upi-transaction-lookup/internal/lookup"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/reporter"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find transactions matching partial details",
	Long: `Search loads a snapshot once and looks up transactions by date, time,
amount and the last four digits of the sender account. Every criterion
is optional.

Time matches within 30 minutes on the same day and amount within 50,
unless overridden. A last4 of 0000, a time of 00:00:00 or a non-positive
amount mean "unknown" and do not narrow the search.

Examples:
  # Exact lookup
  txnlookup search --snapshot transactions.json --date 2025-12-23 \
    --time 18:18 --amount 1499 --last4 4321

  # Everything on one day, newest limit of 50
  txnlookup search --snapshot transactions.json --date 2025-12-23 --last-n 50

  # Export as an Excel workbook
  txnlookup search --snapshot transactions.json --date 2025-12-23 \
    --output-format xlsx --output-file results.xlsx`,

	PreRunE: validateSearchFlags,
	RunE:    runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addSourceFlags(searchCmd)

	// Criteria flags
	searchCmd.Flags().String("date", "", "transaction date (YYYY-MM-DD)")
	searchCmd.Flags().String("time", "", "approximate time of day (HH:MM:SS or HH:MM)")
	searchCmd.Flags().String("amount", "", "approximate amount")
	searchCmd.Flags().String("last4", "", "last four digits of the sender account (0000 if unknown)")
	searchCmd.Flags().IntP("last-n", "n", 10, "maximum number of results")
	searchCmd.Flags().Bool("fuzzy", true, "retry without the last4 when nothing matches exactly")

	// Tolerance flags
	searchCmd.Flags().Duration("time-tolerance", 30*time.Minute, "largest time-of-day difference still matched")
	searchCmd.Flags().Float64("amount-tolerance", 50, "largest amount difference still matched")

	// Output flags
	searchCmd.Flags().StringP("output-format", "f", "console", "output format: console, json, csv, xlsx")
	searchCmd.Flags().StringP("output-file", "o", "", "output file path (default: stdout)")
	searchCmd.Flags().Bool("show-descriptions", true, "include transaction descriptions in console output")
}

func validateSearchFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	format := reporter.OutputFormat(viper.GetString("output-format"))
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, nil).
			WithSuggestion("Use one of: console, json, csv, xlsx")
	}
	if format.IsBinary() && viper.GetString("output-file") == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil, nil).
			WithSuggestion("xlsx output needs --output-file")
	}

	if raw := viper.GetString("amount"); raw != "" {
		if _, err := decimal.NewFromString(raw); err != nil {
			return errors.ValidationError(errors.CodeInvalidRequest, "amount", raw, err)
		}
	}

	return nil
}

// searchRequest maps the criteria flags onto a request. Empty flags are absent.
func searchRequest() matcher.Request {
	var req matcher.Request

	optional := func(key string) *string {
		if v := viper.GetString(key); v != "" {
			return &v
		}
		return nil
	}

	req.Date = optional("date")
	req.Time = optional("time")
	req.SenderLast4 = optional("last4")

	if raw := viper.GetString("amount"); raw != "" {
		if amount, err := decimal.NewFromString(raw); err == nil {
			req.Amount = &amount
		}
	}

	lastN := viper.GetInt("last-n")
	fuzzy := viper.GetBool("fuzzy")
	req.LastN = &lastN
	req.FuzzySearch = &fuzzy

	return req
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.GetGlobalLogger().WithComponent("cli")

	searchConfig, err := config.CreateSearchConfig(
		viper.GetDuration("time-tolerance"),
		viper.GetFloat64("amount-tolerance"),
		0,
	)
	if err != nil {
		return config.InvalidSettingError("search", err)
	}

	reportConfig, err := config.CreateReportConfig(viper.GetString("output-format"), viper.GetBool("show-descriptions"))
	if err != nil {
		return config.InvalidSettingError("output-format", err)
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	store := snapshot.NewStore(source, nil)
	snap, err := store.Reload(ctx)
	if err != nil {
		return err
	}
	reportLoad(cmd.ErrOrStderr(), snap)

	service, err := lookup.NewService(store, matcher.New(searchConfig), nil)
	if err != nil {
		return err
	}

	req := searchRequest()
	log.WithFields(logger.Fields{
		"source":  source.Name(),
		"records": snap.Count(),
	}).Debug("Starting search")

	result, err := service.Lookup(ctx, req)
	if err != nil {
		return err
	}

	srg, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if outputFile := viper.GetString("output-file"); outputFile != "" {
		written, err := srg.WriteReportFile(result, outputFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d transaction(s) written to %s\n", result.Tier, result.Count, written)
		return nil
	}

	return srg.GenerateReportSafely(result, cmd.OutOrStdout())
}
