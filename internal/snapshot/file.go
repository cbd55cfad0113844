package snapshot

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/shopspring/decimal"
)

// FileFormat selects how a snapshot file is decoded
type FileFormat string

const (
	FormatAuto FileFormat = "auto"
	FormatJSON FileFormat = "json"
	FormatCSV  FileFormat = "csv"
)

// csvColumns are the required CSV headers, in the order records are written
var csvColumns = []string{
	"txn_id", "date", "time", "amount", "sender_last4",
	"receiver_account_no", "receiver_bank_name", "sender_bank_name",
	"status", "description", "failure_reason",
}

// FileSource reads a snapshot document from the local filesystem.
// JSON documents hold an array of transaction objects; CSV documents
// carry one record per row under the csvColumns headers.
type FileSource struct {
	Path   string
	Format FileFormat
	logger logger.Logger
}

// NewFileSource creates a file source that infers the format from the extension
func NewFileSource(path string) *FileSource {
	return &FileSource{
		Path:   path,
		Format: FormatAuto,
		logger: logger.GetGlobalLogger().WithComponent("snapshot_file"),
	}
}

// Name returns the file path
func (fs *FileSource) Name() string {
	return fs.Path
}

// Load reads and decodes the whole file
func (fs *FileSource) Load(ctx context.Context) ([]*models.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "snapshot_load", err)
	}

	fs.logger.WithField("file_path", fs.Path).Debug("Opening snapshot file")

	file, err := os.Open(fs.Path)
	if err != nil {
		fs.logger.WithError(err).WithField("file_path", fs.Path).Error("Failed to open snapshot file")
		if os.IsNotExist(err) {
			return nil, errors.SourceError(errors.CodeSourceNotFound, fs.Path, err)
		}
		return nil, errors.SourceError(errors.CodeSourceUnreadable, fs.Path, err)
	}
	defer file.Close()

	switch fs.format() {
	case FormatCSV:
		return fs.decodeCSV(file)
	default:
		return fs.decodeJSON(file)
	}
}

func (fs *FileSource) format() FileFormat {
	if fs.Format != "" && fs.Format != FormatAuto {
		return fs.Format
	}
	if strings.EqualFold(filepath.Ext(fs.Path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

func (fs *FileSource) decodeJSON(r io.Reader) ([]*models.TransactionRecord, error) {
	var records []*models.TransactionRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		fs.logger.WithError(err).WithField("file_path", fs.Path).Error("Snapshot is not a valid JSON document")
		return nil, errors.SourceError(errors.CodeSourceCorrupted, fs.Path, err)
	}
	if records == nil {
		records = []*models.TransactionRecord{}
	}
	return records, nil
}

// decodeCSV maps rows by header name. Rows that cannot be converted are
// returned as records that fail validation so they are counted, not fatal.
func (fs *FileSource) decodeCSV(r io.Reader) ([]*models.TransactionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return []*models.TransactionRecord{}, nil
	}
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceCorrupted, fs.Path, err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, col := range csvColumns[:9] {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.SourceError(errors.CodeSourceCorrupted, fs.Path,
			fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))).
			WithSuggestion(fmt.Sprintf("Ensure the CSV file contains these headers: %s", strings.Join(csvColumns[:9], ", ")))
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]*models.TransactionRecord, 0)
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.SourceError(errors.CodeSourceCorrupted, fs.Path, err).
				WithContext("line", line)
		}

		amount, err := decimal.NewFromString(field(row, "amount"))
		if err != nil {
			fs.logger.WithFields(logger.Fields{
				"line_number": line,
				"value":       field(row, "amount"),
			}).Debug("Unparseable amount in snapshot row")
			amount = decimal.Zero
		}

		records = append(records, &models.TransactionRecord{
			ID:                field(row, "txn_id"),
			Date:              field(row, "date"),
			Time:              field(row, "time"),
			Amount:            amount,
			SenderLast4:       field(row, "sender_last4"),
			ReceiverAccountNo: field(row, "receiver_account_no"),
			ReceiverBankName:  field(row, "receiver_bank_name"),
			SenderBankName:    field(row, "sender_bank_name"),
			Status:            models.TransactionStatus(strings.ToUpper(field(row, "status"))),
			Description:       field(row, "description"),
			FailureReason:     field(row, "failure_reason"),
		})
	}

	return records, nil
}

// WriteJSON writes records as an indented JSON snapshot document
func WriteJSON(path string, records []*models.TransactionRecord) error {
	if records == nil {
		records = []*models.TransactionRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "snapshot_encode", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.SourceError(errors.CodeSourceUnreadable, path, err)
		}
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.SourceError(errors.CodeSourceUnreadable, path, err)
	}

	return nil
}
