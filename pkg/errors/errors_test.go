package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestLookupError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
		expectText string
	}{
		{
			name:       "source error",
			category:   CategorySource,
			code:       CodeSourceNotFound,
			message:    "snapshot not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
			expectText: "snapshot not found: no such file",
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeInvalidRequest,
			message:    "bad amount",
			expectCode: 3,
			expectText: "bad amount",
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
			expectText: "invalid config: missing field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *LookupError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.expectText {
				t.Errorf("expected error string %q, got %q", tt.expectText, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a stack trace to be captured")
			}
		})
	}
}

func TestLookupErrorWithContext(t *testing.T) {
	err := New(CategorySource, CodeSourceNotFound, "test error").
		WithContext("source", "/data/transactions.json").
		WithContext("attempt", 2).
		WithSuggestion("check the path")

	if err.Context["source"] != "/data/transactions.json" {
		t.Errorf("expected source context, got %v", err.Context["source"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("expected attempt context 2, got %v", err.Context["attempt"])
	}

	expected := "test error (suggestion: check the path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("SourceError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := SourceError(CodeSourceUnreadable, "/data/tx.json", cause)

		if err.Category != CategorySource {
			t.Errorf("expected source category, got %s", err.Category)
		}
		if err.Context["source"] != "/data/tx.json" {
			t.Errorf("expected source context, got %v", err.Context["source"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeInvalidRequest, "amount", "abc", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "amount" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
		if !strings.Contains(err.Message, "abc") {
			t.Errorf("expected message to mention the value, got %q", err.Message)
		}
	})

	t.Run("LookupFailure", func(t *testing.T) {
		err := LookupFailure(CodeSnapshotNotLoaded, "search", nil)
		if err.Category != CategoryLookup {
			t.Errorf("expected lookup category, got %s", err.Category)
		}
		if err.GetExitCode() != 5 {
			t.Errorf("expected exit code 5, got %d", err.GetExitCode())
		}
	})

	t.Run("NetworkError", func(t *testing.T) {
		err := NetworkError(CodeConnectionFailed, "localhost:6379", errors.New("refused"))
		if err.Context["endpoint"] != "localhost:6379" {
			t.Errorf("expected endpoint context, got %v", err.Context["endpoint"])
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*LookupError{
		ValidationError(CodeInvalidRecord, "txn_id", "TXN0001", nil),
		ValidationError(CodeInvalidRecord, "txn_id", "TXN0002", nil),
		ValidationError(CodeDuplicateRecord, "txn_id", "TXN0003", nil),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryValidation] != 3 {
		t.Errorf("expected 3 validation errors, got %d", summary.ByCategory[CategoryValidation])
	}
	if !summary.HasCode(CodeDuplicateRecord) {
		t.Error("expected to have duplicate record code")
	}
	if summary.HasCode(CodeSourceNotFound) {
		t.Error("expected not to have source not found code")
	}

	expected := "3 errors occurred (duplicate_record: 1, invalid_record: 2)"
	if summary.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, summary.Error())
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
}

func TestAsLookupError(t *testing.T) {
	lookupErr := New(CategorySource, CodeSourceNotFound, "test")
	wrapped := fmt.Errorf("loading: %w", lookupErr)
	genericErr := errors.New("generic error")

	if extracted, ok := AsLookupError(wrapped); !ok || extracted != lookupErr {
		t.Error("expected AsLookupError to extract LookupError from chain")
	}
	if _, ok := AsLookupError(genericErr); ok {
		t.Error("expected AsLookupError to return false for generic error")
	}
	if _, ok := AsLookupError(nil); ok {
		t.Error("expected AsLookupError to return false for nil")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	lookupErr := New(CategorySource, CodeSourceNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(lookupErr, CategoryInternal, CodeUnexpectedError, "wrapped") != lookupErr {
		t.Error("expected WrapIfNeeded to return original LookupError")
	}

	result := WrapIfNeeded(genericErr, CategoryInternal, CodeUnexpectedError, "wrapped")
	if result.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}
	if result.Category != CategoryInternal {
		t.Error("expected wrapped error to have correct category")
	}

	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategorySource, 2},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryLookup, 5},
		{CategoryInternal, 5},
		{CategoryNetwork, 6},
		{ErrorCategory("other"), 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}
