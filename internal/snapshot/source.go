// Package snapshot loads transaction records from a source and serves them
// as immutable, versioned snapshots.
//
// A Source yields the raw records. The Store validates them, drops invalid
// and duplicate entries, and publishes the result as one Snapshot that is
// swapped in atomically. Searches read the current snapshot with a single
// pointer load and never observe a partially loaded collection.
//
// Example usage:
//
//	store := snapshot.NewStore(snapshot.NewFileSource("transactions.json"), nil)
//	if _, err := store.Reload(ctx); err != nil {
//		return err
//	}
//	records := store.Records()
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/pkg/errors"
)

// Source yields the full record collection on every Load
type Source interface {
	// Load reads every record from the source, in source order
	Load(ctx context.Context) ([]*models.TransactionRecord, error)

	// Name identifies the source in logs and health output
	Name() string
}

// LoadStats holds statistics about one load operation
type LoadStats struct {
	RecordsRead    int                  `json:"records_read"`
	RecordsValid   int                  `json:"records_valid"`
	InvalidCount   int                  `json:"invalid_count"`
	DuplicateCount int                  `json:"duplicate_count"`
	Errors         *errors.ErrorSummary `json:"errors,omitempty"`
}

// HasErrors returns true if any record was dropped
func (ls *LoadStats) HasErrors() bool {
	return ls.InvalidCount > 0 || ls.DuplicateCount > 0
}

// String returns a human-readable summary of the load
func (ls *LoadStats) String() string {
	return fmt.Sprintf("Read %d records (%d valid), %d invalid, %d duplicates",
		ls.RecordsRead, ls.RecordsValid, ls.InvalidCount, ls.DuplicateCount)
}

// GetSampleErrors returns a sample of the load errors for logging
func (ls *LoadStats) GetSampleErrors() []string {
	if ls.Errors == nil {
		return nil
	}

	samples := make([]string, 0, len(ls.Errors.SampleErrors))
	for _, err := range ls.Errors.SampleErrors {
		samples = append(samples, err.Error())
	}
	return samples
}

// validateRecords keeps valid records in source order. The first record
// with a given ID wins; later ones are reported as duplicates.
func validateRecords(records []*models.TransactionRecord) ([]*models.TransactionRecord, *LoadStats) {
	stats := &LoadStats{RecordsRead: len(records)}
	valid := make([]*models.TransactionRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	var problems []*errors.LookupError

	for i, r := range records {
		if r == nil {
			stats.InvalidCount++
			problems = append(problems, errors.ValidationError(
				errors.CodeInvalidRecord, "record", fmt.Sprintf("#%d", i+1),
				fmt.Errorf("record is null"),
			))
			continue
		}

		if err := r.Validate(); err != nil {
			stats.InvalidCount++
			problems = append(problems, errors.ValidationError(
				errors.CodeInvalidRecord, "record", recordLabel(r, i), err,
			).WithContext("index", i))
			continue
		}

		if _, dup := seen[r.ID]; dup {
			stats.DuplicateCount++
			problems = append(problems, errors.ValidationError(
				errors.CodeDuplicateRecord, "txn_id", r.ID, nil,
			).WithContext("index", i))
			continue
		}

		seen[r.ID] = struct{}{}
		valid = append(valid, r)
	}

	stats.RecordsValid = len(valid)
	if len(problems) > 0 {
		stats.Errors = errors.NewErrorSummary(problems)
	}

	return valid, stats
}

func recordLabel(r *models.TransactionRecord, index int) string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index+1)
}
