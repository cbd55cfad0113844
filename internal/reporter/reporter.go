// Package reporter renders lookup results for people and programs.
//
// Supported output formats:
//   - Console: human-readable listing for terminal display
//   - JSON: the result envelope for programmatic consumption
//   - CSV: one row per transaction for spreadsheet applications
//   - XLSX: an Excel workbook with a transactions sheet and a summary sheet
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/models"

	"github.com/xuri/excelize/v2"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be printed to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

const (
	transactionsSheet = "Transactions"
	summarySheet      = "Summary"
)

// columns are the per-transaction fields written by the CSV and XLSX formats
var columns = []string{
	"Txn_ID", "Date", "Time", "Amount", "Status", "Sender_Last4",
	"Sender_Bank", "Receiver_Bank", "Receiver_Account", "Description", "Failure_Reason",
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Console options
	ShowDescriptions bool `json:"show_descriptions" mapstructure:"show_descriptions"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"-"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		ShowDescriptions: true,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '\n' || c.CSVDelimiter == '"') {
		return fmt.Errorf("invalid csv delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator renders search results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders result and writes it to writer
func (rg *ReportGenerator) GenerateReport(result *matcher.SearchResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("search result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport labels fuzzy results with their warning and
// shows the date diagnostics of an empty result
func (rg *ReportGenerator) generateConsoleReport(result *matcher.SearchResult, writer io.Writer) error {
	ew := &errWriter{w: writer}

	ew.printf("TRANSACTION LOOKUP\n")
	ew.printf("Result: %s\n", strings.ToUpper(string(result.Tier)))
	ew.printf("%s\n", result.Message)

	if result.Warning != "" {
		ew.printf("\nWARNING: %s\n", result.Warning)
	}

	if !result.Success {
		if result.DebugInfo != "" {
			ew.printf("\nDebug: %s\n", result.DebugInfo)
		}
		return ew.err
	}

	ew.printf("\n=== TRANSACTIONS (%d) ===\n", result.Count)
	for i, r := range result.Records {
		rg.printRecord(ew, i+1, r)
	}

	return ew.err
}

func (rg *ReportGenerator) printRecord(ew *errWriter, n int, r *models.TransactionRecord) {
	ew.printf("\n%d. %s  %s %s\n", n, r.ID, r.Date, r.Time)
	ew.printf("   Amount:   %s\n", r.Amount.StringFixed(2))
	ew.printf("   Status:   %s\n", r.Status)
	ew.printf("   From:     %s (XXXX%s)\n", r.SenderBankName, r.SenderLast4)
	ew.printf("   To:       %s (%s)\n", r.ReceiverBankName, r.ReceiverAccountNo)
	if rg.config.ShowDescriptions && r.Description != "" {
		ew.printf("   Details:  %s\n", r.Description)
	}
	if r.FailureReason != "" {
		ew.printf("   Reason:   %s\n", r.FailureReason)
	}
}

// generateJSONReport writes the result envelope
func (rg *ReportGenerator) generateJSONReport(result *matcher.SearchResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(result)
}

// generateCSVReport writes one row per transaction
func (rg *ReportGenerator) generateCSVReport(result *matcher.SearchResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range result.Records {
		if err := csvWriter.Write(recordRow(r)); err != nil {
			return fmt.Errorf("failed to write transaction %s: %w", r.ID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// generateXLSXReport writes a workbook with transactions and a summary sheet
func (rg *ReportGenerator) generateXLSXReport(result *matcher.SearchResult, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), transactionsSheet); err != nil {
		return fmt.Errorf("failed to name transactions sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write XLSX headers: %w", err)
	}

	for i, r := range result.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		amount, _ := r.Amount.Float64()
		row := []interface{}{
			r.ID, r.Date, r.Time, amount, string(r.Status), r.SenderLast4,
			r.SenderBankName, r.ReceiverBankName, r.ReceiverAccountNo, r.Description, r.FailureReason,
		}
		if err := f.SetSheetRow(transactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write transaction %s: %w", r.ID, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Success", result.Success},
		{"Tier", string(result.Tier)},
		{"Count", result.Count},
		{"Message", result.Message},
		{"Warning", result.Warning},
		{"Debug", result.DebugInfo},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if _, err := f.WriteTo(writer); err != nil {
		return fmt.Errorf("failed to write XLSX workbook: %w", err)
	}
	return nil
}

func recordRow(r *models.TransactionRecord) []string {
	return []string{
		r.ID,
		r.Date,
		r.Time,
		r.Amount.StringFixed(2),
		string(r.Status),
		r.SenderLast4,
		r.SenderBankName,
		r.ReceiverBankName,
		r.ReceiverAccountNo,
		r.Description,
		r.FailureReason,
	}
}

// UpdateConfiguration replaces the configuration after validating it
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}
	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// errWriter keeps the first write error so console output stays linear
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
