// Package errors defines the error taxonomy of the conciliation engine.
//
// Errors fall into three caller-visible classes: validation errors reject a
// single record and let the batch continue, conflict errors surface an
// attempt to confirm against an already-bound ledger entry or bank
// transaction, and everything else is an operational failure. A transaction
// that simply finds no candidate is not an error; it is a normal sem_match
// outcome and never travels through this package.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents the broad class of an error.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryParse         ErrorCategory = "parse"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConciliation  ErrorCategory = "conciliation"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidStatus ErrorCode = "invalid_status"

	// Conflict errors
	CodeEntryAlreadyMatched       ErrorCode = "entry_already_matched"
	CodeTransactionAlreadyMatched ErrorCode = "transaction_already_matched"
	CodeIllegalTransition         ErrorCode = "illegal_transition"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeFileNotFound  ErrorCode = "file_not_found"
	CodeFileAccess    ErrorCode = "file_access"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Conciliation errors
	CodeMatchingFailed  ErrorCode = "matching_failed"
	CodeMatchNotFound   ErrorCode = "match_not_found"
	CodeProcessingError ErrorCode = "processing_error"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// Context carries additional structured information about an error.
type Context map[string]interface{}

// ConciliationError is the base error type for all engine errors.
type ConciliationError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface.
func (e *ConciliationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *ConciliationError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context entry to the error.
func (e *ConciliationError) WithContext(key string, value interface{}) *ConciliationError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a remediation hint to the error.
func (e *ConciliationError) WithSuggestion(suggestion string) *ConciliationError {
	e.Suggestion = suggestion
	return e
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new ConciliationError.
func New(category ErrorCategory, code ErrorCode, message string) *ConciliationError {
	return &ConciliationError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ConciliationError {
	if err == nil {
		return nil
	}

	return &ConciliationError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ValidationError creates a per-record validation error. The record is
// rejected; batch evaluation continues with the remaining records.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ConciliationError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be decimal numbers, e.g. '1234.56' or '1.234,56'"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD or DD/MM/YYYY"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidStatus:
		message = fmt.Sprintf("invalid status in field '%s': %v", field, value)
		suggestion = "use one of the reconciliation status values"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConflictError creates an error for a confirm attempt against an already
// bound ledger entry or bank transaction. It carries the conflicting match
// and entry ids so the caller can decide whether to unlink and retry; the
// engine never resolves conflicts automatically.
func ConflictError(code ErrorCode, bankTransactionID string, conflictingMatchIDs, conflictingEntryIDs []string) *ConciliationError {
	var message string

	switch code {
	case CodeEntryAlreadyMatched:
		message = fmt.Sprintf("ledger entry already bound to a confirmed match: %s",
			strings.Join(conflictingEntryIDs, ", "))
	case CodeTransactionAlreadyMatched:
		message = fmt.Sprintf("bank transaction %s already has a confirmed match", bankTransactionID)
	default:
		message = fmt.Sprintf("conflict confirming match for bank transaction %s", bankTransactionID)
	}

	return New(CategoryConflict, code, message).
		WithSuggestion("unlink the conflicting match before retrying").
		WithContext("bank_transaction_id", bankTransactionID).
		WithContext("conflicting_match_ids", conflictingMatchIDs).
		WithContext("conflicting_entry_ids", conflictingEntryIDs)
}

// TransitionError creates an error for an illegal reconciliation status
// transition.
func TransitionError(from, to string) *ConciliationError {
	return New(CategoryConflict, CodeIllegalTransition,
		fmt.Sprintf("illegal status transition from '%s' to '%s'", from, to)).
		WithContext("from", from).
		WithContext("to", to)
}

// ParseError creates a parsing error for a CSV record.
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *ConciliationError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format against the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// FileError creates an error for a file that could not be read.
func FileError(code ErrorCode, file string, err error) *ConciliationError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", file)
		suggestion = "check the file path"
	case CodeFileAccess:
		message = fmt.Sprintf("cannot access file: %s", file)
		suggestion = "check the file permissions"
	default:
		message = fmt.Sprintf("file error: %s", file)
		suggestion = "check that the file exists and is readable"
	}

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// ConfigurationError creates a configuration error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ConciliationError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ConciliationOpError creates an error for a failed conciliation operation.
func ConciliationOpError(code ErrorCode, operation string, err error) *ConciliationError {
	message := fmt.Sprintf("conciliation error during %s", operation)
	if code == CodeMatchNotFound {
		message = fmt.Sprintf("no match record found during %s", operation)
	}

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryConciliation, code, message)
	} else {
		result = New(CategoryConciliation, code, message)
	}

	return result.WithContext("operation", operation)
}

// InternalError creates an internal error.
func InternalError(operation string, err error) *ConciliationError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *ConciliationError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug, report it with the error details").
		WithContext("operation", operation)
}

// AsConciliationError extracts a ConciliationError from an error chain.
func AsConciliationError(err error) (*ConciliationError, bool) {
	var ce *ConciliationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsValidation reports whether the error is a validation error.
func IsValidation(err error) bool {
	ce, ok := AsConciliationError(err)
	return ok && ce.Category == CategoryValidation
}

// IsConflict reports whether the error is a conflict error.
func IsConflict(err error) bool {
	ce, ok := AsConciliationError(err)
	return ok && ce.Category == CategoryConflict
}

// ConflictingMatchIDs returns the conflicting match ids carried by a
// conflict error, if any.
func ConflictingMatchIDs(err error) []string {
	ce, ok := AsConciliationError(err)
	if !ok || ce.Context == nil {
		return nil
	}
	ids, _ := ce.Context["conflicting_match_ids"].([]string)
	return ids
}
