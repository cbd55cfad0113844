package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"upi-transaction-lookup/cmd/txnlookup/config"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addSourceFlags registers the flags that select a record source
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("snapshot", "", "path to the transaction snapshot (JSON array or CSV)")
	cmd.Flags().String("postgres-dsn", "", "read transactions from Postgres instead of a snapshot file")
	cmd.Flags().String("postgres-table", "upi_transactions", "Postgres table holding the transactions")
	cmd.Flags().Bool("newest-first", false, "order Postgres records newest first")
}

// openSource builds the configured record source. The returned close
// function releases database connections.
func openSource(ctx context.Context) (snapshot.Source, func(), error) {
	path := viper.GetString("snapshot")
	dsn := viper.GetString("postgres-dsn")

	switch {
	case path != "" && dsn != "":
		return nil, nil, errors.ConfigurationError(errors.CodeConfigConflict, "snapshot", path,
			fmt.Errorf("--snapshot and --postgres-dsn are mutually exclusive"))

	case path != "":
		if err := validateFileExists(path, "snapshot file"); err != nil {
			return nil, nil, err
		}
		return snapshot.NewFileSource(path), func() {}, nil

	case dsn != "":
		pgConfig, err := config.CreatePostgresConfig(dsn, viper.GetString("postgres-table"), viper.GetBool("newest-first"))
		if err != nil {
			return nil, nil, config.InvalidSettingError("postgres", err)
		}
		source, err := snapshot.NewPostgresSource(ctx, pgConfig)
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil

	default:
		return nil, nil, errors.ConfigurationError(errors.CodeMissingConfig, "snapshot", nil, nil).
			WithSuggestion("Pass --snapshot FILE, --postgres-dsn DSN or set TXNLOOKUP_SNAPSHOT")
	}
}

func validateFileExists(filePath, description string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.SourceError(errors.CodeSourceNotFound, filePath, err)
	}
	if err != nil {
		return errors.SourceError(errors.CodeSourceUnreadable, filePath, err)
	}

	if info.IsDir() {
		return errors.SourceError(errors.CodeSourceUnreadable, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	return nil
}

// reportLoad prints skipped-record diagnostics when the snapshot had any
func reportLoad(w io.Writer, snap *snapshot.Snapshot) {
	if snap == nil || snap.Stats == nil || !snap.Stats.HasErrors() {
		return
	}

	total := snap.Stats.InvalidCount + snap.Stats.DuplicateCount
	if msg := FormatLoadErrors(snap.Stats.GetSampleErrors(), total); msg != "" {
		fmt.Fprintln(w, msg)
	}
}
