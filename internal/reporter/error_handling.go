package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"output_format",
			config.Format,
			err,
		).WithSuggestion("Use one of: console, json, csv, xlsx")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders result, falling back to the console format
// if the requested format fails.
func (srg *SafeReportGenerator) GenerateReportSafely(result *matcher.SearchResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.config.Format == FormatConsole {
		return srg.wrapGenerationError(err)
	}
	return srg.generateWithFormatFallback(result, writer, err)
}

// createReportFile opens a report destination for writing
var createReportFile = func(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// WriteReportFile renders result into path. If path cannot be created the
// report is written to a backup file in the temp directory, whose path is
// returned.
func (srg *SafeReportGenerator) WriteReportFile(result *matcher.SearchResult, path string) (string, error) {
	if err := srg.validateInputs(result, io.Discard); err != nil {
		return "", err
	}

	written := path
	file, err := createReportFile(path)
	if err != nil {
		if !isFileError(err) {
			return "", srg.wrapGenerationError(err)
		}

		written = generateBackupPath(path)
		srg.logger.WithError(err).WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   written,
		}).Warn("Cannot create report file, using backup location")

		file, err = createReportFile(written)
		if err != nil {
			return "", srg.wrapGenerationError(err)
		}
	}

	if err := srg.GenerateReport(result, file); err != nil {
		_ = file.Close()
		srg.removePartial(written)
		return "", srg.wrapGenerationError(err)
	}

	if err := file.Close(); err != nil {
		srg.removePartial(written)
		return "", srg.wrapGenerationError(err)
	}

	srg.logger.WithField("file_path", written).Info("Report written")
	return written, nil
}

// removePartial deletes an incomplete report file
func (srg *SafeReportGenerator) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		srg.logger.WithError(err).WithField("file_path", path).Warn("Cannot remove incomplete report file")
	}
}

func (srg *SafeReportGenerator) validateInputs(result *matcher.SearchResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a search result to render")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result *matcher.SearchResult, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if lookupErr, ok := errors.AsLookupError(err); ok {
		return lookupErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) || os.IsExist(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}

// generateBackupPath places name_backup.ext in the temp directory
func generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(os.TempDir(), fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
