package cmd

import (
	"fmt"

	"upi-transaction-lookup/cmd/txnlookup/config"
	"upi-transaction-lookup/internal/generator"
	"upi-transaction-lookup/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic transaction snapshot",
	Long: `Generate writes random UPI transactions as a JSON snapshot for local
development. Every transaction has a unique id and a unique date and time.

Examples:
  txnlookup generate --output transactions.json
  txnlookup generate --output week.json --count 500 --days 7 --seed 42`,

	PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlags(cmd) },
	RunE:    runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("output", "o", "transactions.json", "snapshot file to write")
	generateCmd.Flags().Int("count", 200, "number of transactions")
	generateCmd.Flags().Int("days", 30, "spread transactions over the last N days")
	generateCmd.Flags().Int64("seed", 0, "random seed for reproducible output (0 picks one)")
	generateCmd.Flags().Bool("failure-reasons", false, "fill failure_reason on FAILED transactions")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	genConfig, err := config.CreateGeneratorConfig(
		viper.GetInt("count"),
		viper.GetInt("days"),
		viper.GetInt64("seed"),
		viper.GetBool("failure-reasons"),
	)
	if err != nil {
		return config.InvalidSettingError("generate", err)
	}

	gen, err := generator.New(genConfig)
	if err != nil {
		return config.InvalidSettingError("generate", err)
	}

	output := viper.GetString("output")
	records := gen.Generate()
	if err := generator.WriteJSON(output, records); err != nil {
		return err
	}

	logger.GetGlobalLogger().WithComponent("cli").WithFields(logger.Fields{
		"output": output,
		"count":  len(records),
		"seed":   genConfig.Seed,
	}).Debug("Snapshot generated")

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d transactions in %s (seed %d)\n", len(records), output, genConfig.Seed)
	return nil
}
