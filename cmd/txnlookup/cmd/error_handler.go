package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a handler that writes to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return newCLIErrorHandler(os.Stderr, viper.GetBool("verbose"))
}

func newCLIErrorHandler(out io.Writer, verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: verbose,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if lookupErr, ok := errors.AsLookupError(err); ok {
		return h.handleLookupError(lookupErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleLookupError(err *errors.LookupError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if h.verbose && len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "Suggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if err.Cause != nil && (h.verbose || err.Category == errors.CategorySource || err.Category == errors.CategoryConfiguration) {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Suggestion: Run 'txnlookup --help' for usage\n")
	return 1
}

func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategorySource:
		return `Source error help:
• Check that the snapshot file exists and is readable
• The snapshot must be a JSON array of transactions, or a CSV with a header row
• For Postgres sources, check the DSN and that the table exists
• Run 'txnlookup generate' to create a sample snapshot`

	case errors.CategoryValidation:
		return `Validation error help:
• Dates use YYYY-MM-DD
• Times use HH:MM:SS or HH:MM
• Amounts are decimal numbers without currency symbols
• Sender last4 is four digits, or 0000 when unknown`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Environment variables use the TXNLOOKUP_ prefix, for example TXNLOOKUP_SNAPSHOT
• Use 'txnlookup <command> --help' to see all available options`

	case errors.CategoryLookup:
		return `Lookup error help:
• Make sure a snapshot has been loaded
• Reload the snapshot once the source is fixed`

	case errors.CategoryNetwork:
		return `Network error help:
• Check that Redis and Postgres are reachable from this host
• Run without --redis-addr to disable the result cache`

	default:
		return `For more help:
• Use 'txnlookup --help' for general help
• Run with --verbose for detailed error information`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatLoadErrors lists the records skipped while loading a snapshot
func FormatLoadErrors(samples []string, total int) string {
	if total == 0 || len(samples) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Skipped %d invalid or duplicate records:", total))

	for i, sample := range samples {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, sample))
	}
	if total > len(samples) {
		lines = append(lines, fmt.Sprintf("  ... and %d more", total-len(samples)))
	}

	return strings.Join(lines, "\n")
}
