package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by snapshots and queries
const DateLayout = "2006-01-02"

// TransactionStatus represents the settlement state of a UPI transaction
type TransactionStatus string

const (
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
	StatusPending TransactionStatus = "PENDING"
)

// AllStatuses lists every valid status in a stable order
var AllStatuses = []TransactionStatus{StatusSuccess, StatusFailed, StatusPending}

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusPending:
		return true
	default:
		return false
	}
}

// DefaultDescription returns the description text a snapshot carries for the status
func (s TransactionStatus) DefaultDescription() string {
	switch s {
	case StatusSuccess:
		return "Transaction completed successfully"
	case StatusFailed:
		return "Transaction failed"
	default:
		return "Transaction pending"
	}
}

// TransactionRecord is one immutable entry of a transaction snapshot.
//
// Time is kept as the raw stored string. A malformed value is not a load
// error; the matcher simply never matches it against a time criterion.
type TransactionRecord struct {
	ID                string            `json:"txn_id"`
	Date              string            `json:"date"`
	Time              string            `json:"time"`
	Amount            decimal.Decimal   `json:"amount"`
	SenderLast4       string            `json:"sender_last4"`
	ReceiverAccountNo string            `json:"receiver_account_no"`
	ReceiverBankName  string            `json:"receiver_bank_name"`
	SenderBankName    string            `json:"sender_bank_name"`
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description"`
	FailureReason     string            `json:"failure_reason,omitempty"`
}

// Validate performs basic validation on the record
func (r *TransactionRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}

	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("transaction %s has invalid date %q: expected YYYY-MM-DD", r.ID, r.Date)
	}

	if !r.Amount.IsPositive() {
		return fmt.Errorf("transaction %s amount must be positive, got %s", r.ID, r.Amount.String())
	}

	if !IsLast4(r.SenderLast4) {
		return fmt.Errorf("transaction %s sender_last4 must be 4 digits, got %q", r.ID, r.SenderLast4)
	}

	if !r.Status.IsValid() {
		return fmt.Errorf("transaction %s has invalid status: %s", r.ID, r.Status)
	}

	return nil
}

// IsFailure reports whether the record is a candidate for a failure explanation
func (r *TransactionRecord) IsFailure() bool {
	return r.Status != StatusSuccess
}

// String returns a string representation of the record
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{ID: %s, At: %s %s, Amount: %s, Last4: %s, Status: %s}",
		r.ID, r.Date, r.Time, r.Amount.StringFixed(2), r.SenderLast4, r.Status)
}

// MarshalJSON writes the amount as a JSON number, matching the snapshot document
func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	type Alias TransactionRecord
	return json.Marshal(&struct {
		Amount json.Number `json:"amount"`
		*Alias
	}{
		Amount: json.Number(r.Amount.String()),
		Alias:  (*Alias)(&r),
	})
}

// Equals compares two records for equality
func (r *TransactionRecord) Equals(other *TransactionRecord) bool {
	if other == nil {
		return false
	}

	return r.ID == other.ID &&
		r.Date == other.Date &&
		r.Time == other.Time &&
		r.Amount.Equal(other.Amount) &&
		r.SenderLast4 == other.SenderLast4 &&
		r.ReceiverAccountNo == other.ReceiverAccountNo &&
		r.ReceiverBankName == other.ReceiverBankName &&
		r.SenderBankName == other.SenderBankName &&
		r.Status == other.Status &&
		r.Description == other.Description &&
		r.FailureReason == other.FailureReason
}

// IsLast4 reports whether s is exactly four ASCII digits
func IsLast4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
