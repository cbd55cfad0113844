package cmd

import (
	"fmt"
	"os"
	"strings"

	"upi-transaction-lookup/cmd/txnlookup/config"
	"upi-transaction-lookup/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI
const EnvPrefix = "TXNLOOKUP"

var (
	cfgFile string
	envFile string
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "txnlookup",
	Short: "UPI transaction lookup tool",
	Long: `Txnlookup finds UPI transactions in a snapshot from the partial details
a customer remembers: the date, roughly when, roughly how much, and the
last four digits of the account.

Exact matches are tried first. If none are found and fuzzy search is on,
the account digits are ignored and the result carries a warning.

Examples:
  txnlookup search --snapshot transactions.json --date 2025-12-23 --time 18:18 --amount 1499 --last4 4321
  txnlookup serve --snapshot transactions.json --watch --addr :8080
  txnlookup generate --output transactions.json --count 200
  txnlookup version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")

	for _, name := range []string{"verbose", "log-level", "log-format", "log-file"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig loads the dotenv file, the config file and the environment,
// then installs the global logger.
func initConfig(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return config.ConfigFileError(cfgFile, err)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	logConfig, err := config.CreateLoggerConfig(
		viper.GetString("log-level"),
		viper.GetString("log-format"),
		viper.GetString("log-file"),
		viper.GetBool("verbose"),
	)
	if err != nil {
		return config.InvalidSettingError("log", err)
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return config.InvalidSettingError("log", err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return config.ConfigFileError(path, err)
	}
	return nil
}

// bindFlags binds the flags of the running command to viper. Binding at
// run time lets commands share key names such as "snapshot".
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
