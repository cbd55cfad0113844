package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategorySource        ErrorCategory = "source"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryLookup        ErrorCategory = "lookup"
	CategoryNetwork       ErrorCategory = "network"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Source errors
	CodeSourceNotFound    ErrorCode = "source_not_found"
	CodeSourceUnreadable  ErrorCode = "source_unreadable"
	CodeSourceCorrupted   ErrorCode = "source_corrupted"
	CodeSourceUnavailable ErrorCode = "source_unavailable"

	// Validation errors
	CodeInvalidRecord   ErrorCode = "invalid_record"
	CodeDuplicateRecord ErrorCode = "duplicate_record"
	CodeInvalidRequest  ErrorCode = "invalid_request"
	CodeMissingField    ErrorCode = "missing_field"
	CodeOutOfRange      ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Lookup errors
	CodeSnapshotNotLoaded ErrorCode = "snapshot_not_loaded"
	CodeReloadFailed      ErrorCode = "reload_failed"

	// Network errors
	CodeConnectionFailed   ErrorCode = "connection_failed"
	CodeTimeout            ErrorCode = "timeout"
	CodeServiceUnavailable ErrorCode = "service_unavailable"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LookupError is the base error type for all application errors
type LookupError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LookupError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *LookupError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *LookupError) GetExitCode() int {
	switch e.Category {
	case CategorySource:
		return 2
	case CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryLookup, CategoryInternal:
		return 5
	case CategoryNetwork:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *LookupError) WithContext(key string, value interface{}) *LookupError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *LookupError) WithSuggestion(suggestion string) *LookupError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LookupError
func New(category ErrorCategory, code ErrorCode, message string) *LookupError {
	return &LookupError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LookupError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LookupError {
	if err == nil {
		return nil
	}

	return &LookupError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message, suggestion string, err error) *LookupError {
	var result *LookupError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// SourceError creates an error for a record source that could not be read
func SourceError(code ErrorCode, source string, err error) *LookupError {
	var message, suggestion string

	switch code {
	case CodeSourceNotFound:
		message = fmt.Sprintf("record source not found: %s", source)
		suggestion = "check the snapshot path or run 'txnlookup generate' to create one"
	case CodeSourceUnreadable:
		message = fmt.Sprintf("record source is not readable: %s", source)
		suggestion = "check file permissions and ensure you have read access"
	case CodeSourceCorrupted:
		message = fmt.Sprintf("record source is not a valid transaction document: %s", source)
		suggestion = "the snapshot must be a JSON array of transaction objects"
	case CodeSourceUnavailable:
		message = fmt.Sprintf("record source unavailable: %s", source)
		suggestion = "check the database connection settings and try again"
	default:
		message = fmt.Sprintf("record source error: %s", source)
		suggestion = "check the record source and try again"
	}

	return build(CategorySource, code, message, suggestion, err).
		WithContext("source", source)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *LookupError {
	var message, suggestion string

	switch code {
	case CodeInvalidRecord:
		message = fmt.Sprintf("invalid transaction record '%v'", value)
		suggestion = "correct the record or remove it from the snapshot"
	case CodeDuplicateRecord:
		message = fmt.Sprintf("duplicate transaction id '%v'", value)
		suggestion = "transaction ids must be unique within a snapshot"
	case CodeInvalidRequest:
		message = fmt.Sprintf("invalid value for '%s': %v", field, value)
		suggestion = "use YYYY-MM-DD for dates, HH:MM:SS for times and a positive number for amounts"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, suggestion, err).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *LookupError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting as a flag, in the config file or as a TXNLOOKUP_ environment variable"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, suggestion, err).
		WithContext("setting", setting).
		WithContext("value", value)
}

// LookupFailure creates an error for a lookup that could not be served
func LookupFailure(code ErrorCode, operation string, err error) *LookupError {
	var message, suggestion string

	switch code {
	case CodeSnapshotNotLoaded:
		message = fmt.Sprintf("no transaction snapshot loaded for %s", operation)
		suggestion = "load a snapshot before searching"
	case CodeReloadFailed:
		message = fmt.Sprintf("snapshot reload failed during %s", operation)
		suggestion = "the previous snapshot is still being served; fix the source and reload again"
	default:
		message = fmt.Sprintf("lookup error during %s", operation)
		suggestion = "review the request and the loaded snapshot"
	}

	return build(CategoryLookup, code, message, suggestion, err).
		WithContext("operation", operation)
}

// NetworkError creates a network-related error
func NetworkError(code ErrorCode, endpoint string, err error) *LookupError {
	var message, suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("connection failed to %s", endpoint)
		suggestion = "check network connectivity and endpoint availability"
	case CodeTimeout:
		message = fmt.Sprintf("timeout connecting to %s", endpoint)
		suggestion = "increase timeout setting or check network speed"
	case CodeServiceUnavailable:
		message = fmt.Sprintf("service unavailable: %s", endpoint)
		suggestion = "try again later or contact service administrator"
	default:
		message = fmt.Sprintf("network error: %s", endpoint)
		suggestion = "check network connection and try again"
	}

	return build(CategoryNetwork, code, message, suggestion, err).
		WithContext("endpoint", endpoint)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *LookupError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	suggestion := "this is likely a bug - please report it with the error details"

	return build(CategoryInternal, code, message, suggestion, err).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*LookupError        `json:"-"`
	SampleErrors []*LookupError        `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*LookupError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var codes []string
	for code, count := range es.ByCode {
		codes = append(codes, fmt.Sprintf("%s: %d", code, count))
	}
	sort.Strings(codes)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(codes, ", "))
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// AsLookupError extracts a LookupError from an error chain
func AsLookupError(err error) (*LookupError, bool) {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a LookupError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LookupError {
	if err == nil {
		return nil
	}

	if lookupErr, ok := AsLookupError(err); ok {
		return lookupErr
	}

	return Wrap(err, category, code, message)
}
