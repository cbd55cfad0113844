package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validRecord() TransactionRecord {
	return TransactionRecord{
		ID:                "TXN0001",
		Date:              "2025-12-23",
		Time:              "18:18:44",
		Amount:            decimal.RequireFromString("2941.82"),
		SenderLast4:       "2006",
		ReceiverAccountNo: "8812345678",
		ReceiverBankName:  "HDFC",
		SenderBankName:    "SBI",
		Status:            StatusPending,
		Description:       "Transaction pending",
	}
}

func TestTransactionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status TransactionStatus
		valid  bool
	}{
		{StatusSuccess, true},
		{StatusFailed, true},
		{StatusPending, true},
		{"REVERSED", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("TransactionStatus.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestTransactionStatus_DefaultDescription(t *testing.T) {
	if got := StatusSuccess.DefaultDescription(); got != "Transaction completed successfully" {
		t.Errorf("unexpected success description %q", got)
	}
	if got := StatusFailed.DefaultDescription(); got != "Transaction failed" {
		t.Errorf("unexpected failed description %q", got)
	}
	if got := StatusPending.DefaultDescription(); got != "Transaction pending" {
		t.Errorf("unexpected pending description %q", got)
	}
}

func TestTransactionRecord_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *TransactionRecord)
		wantError string
	}{
		{name: "valid record", mutate: func(r *TransactionRecord) {}},
		{name: "malformed time is not a validation error", mutate: func(r *TransactionRecord) { r.Time = "25:99" }},
		{name: "empty id", mutate: func(r *TransactionRecord) { r.ID = " " }, wantError: "id cannot be empty"},
		{name: "bad date", mutate: func(r *TransactionRecord) { r.Date = "23/12/2025" }, wantError: "invalid date"},
		{name: "zero amount", mutate: func(r *TransactionRecord) { r.Amount = decimal.Zero }, wantError: "must be positive"},
		{name: "short last4", mutate: func(r *TransactionRecord) { r.SenderLast4 = "206" }, wantError: "4 digits"},
		{name: "non digit last4", mutate: func(r *TransactionRecord) { r.SenderLast4 = "20a6" }, wantError: "4 digits"},
		{name: "unknown status", mutate: func(r *TransactionRecord) { r.Status = "DONE" }, wantError: "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()

			if tt.wantError == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got none", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("expected error containing %q, got %v", tt.wantError, err)
			}
		})
	}
}

func TestTransactionRecord_JSON(t *testing.T) {
	doc := `{
		"txn_id": "TXN0042",
		"date": "2025-12-23",
		"time": "18:18:44",
		"amount": 2941.82,
		"sender_last4": "2006",
		"receiver_account_no": "8812345678",
		"receiver_bank_name": "HDFC",
		"sender_bank_name": "SBI",
		"status": "FAILED",
		"description": "Transaction failed",
		"failure_reason": "Beneficiary bank timeout"
	}`

	var r TransactionRecord
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}

	if r.ID != "TXN0042" || r.Status != StatusFailed {
		t.Errorf("unexpected decoded record: %s", r.String())
	}
	if !r.Amount.Equal(decimal.RequireFromString("2941.82")) {
		t.Errorf("expected amount 2941.82, got %s", r.Amount)
	}
	if !r.IsFailure() {
		t.Error("expected FAILED record to be a failure")
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	if !strings.Contains(string(out), `"amount":2941.82`) {
		t.Errorf("expected amount to be encoded as a number, got %s", out)
	}
	if strings.Count(string(out), `"amount"`) != 1 {
		t.Errorf("expected a single amount field, got %s", out)
	}
}

func TestTransactionRecord_JSONOmitsEmptyFailureReason(t *testing.T) {
	r := validRecord()
	out, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	if strings.Contains(string(out), "failure_reason") {
		t.Errorf("expected failure_reason to be omitted, got %s", out)
	}
}

func TestTransactionRecord_Equals(t *testing.T) {
	a := validRecord()
	b := validRecord()

	if !a.Equals(&b) {
		t.Error("expected identical records to be equal")
	}

	b.Amount = decimal.RequireFromString("2941.8200")
	if !a.Equals(&b) {
		t.Error("expected amounts with different scale to be equal")
	}

	b.SenderLast4 = "9999"
	if a.Equals(&b) {
		t.Error("expected records with different last4 to differ")
	}
	if a.Equals(nil) {
		t.Error("expected comparison with nil to be false")
	}
}

func TestIsLast4(t *testing.T) {
	for input, want := range map[string]bool{
		"2006":  true,
		"0000":  true,
		"123":   false,
		"12345": false,
		"12a4":  false,
		"":      false,
	} {
		if got := IsLast4(input); got != want {
			t.Errorf("IsLast4(%q) = %v, want %v", input, got, want)
		}
	}
}
