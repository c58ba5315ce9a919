// Package errors provides structured error types for litebrowse.
// Every error carries a category, code and message so front ends can decide
// how to present it (warning, engine message, precondition failure).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors by how they should be surfaced.
type ErrorCategory string

const (
	// ErrCategoryUserInput covers recoverable input problems: empty query,
	// no table selected, no row selected. Shown as a warning.
	ErrCategoryUserInput ErrorCategory = "USER_INPUT"
	// ErrCategoryEngine wraps a failure reported by the embedded engine.
	ErrCategoryEngine ErrorCategory = "ENGINE"
	// ErrCategoryPrecondition is checked before any statement is issued.
	ErrCategoryPrecondition ErrorCategory = "PRECONDITION"
	// ErrCategoryValidation rejects unsafe identifiers and malformed definitions.
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// User input codes
	CodeEmptyQuery      = "EMPTY_QUERY"
	CodeNoTableSelected = "NO_TABLE_SELECTED"
	CodeNoRowSelected   = "NO_ROW_SELECTED"
	CodeMissingArgument = "MISSING_ARGUMENT"

	// Engine codes
	CodeStatementFailed  = "STATEMENT_FAILED"
	CodeConstraintFailed = "CONSTRAINT_FAILED"
	CodeObjectNotFound   = "OBJECT_NOT_FOUND"

	// Precondition codes
	CodeNoDatabase    = "NO_DATABASE"
	CodeCountMismatch = "COUNT_MISMATCH"
	CodeNoDataRows    = "NO_DATA_ROWS"
	CodeAmbiguousRow  = "AMBIGUOUS_ROW"
	CodeRowNotFound   = "ROW_NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeStaleSnapshot = "STALE_SNAPSHOT"

	// Validation codes
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeInvalidColumnDef  = "INVALID_COLUMN_DEF"
	CodeInvalidFormat     = "INVALID_FORMAT"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeFileIO         = "FILE_IO"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// BrowserError is the structured error type used throughout litebrowse.
type BrowserError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string. Engine errors keep the engine's
// own message at the end so it reaches the user verbatim.
func (e *BrowserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BrowserError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BrowserError) Is(target error) bool {
	var t *BrowserError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BrowserError.
func New(category ErrorCategory, code, message string) *BrowserError {
	return &BrowserError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new BrowserError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BrowserError {
	return &BrowserError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BrowserError) WithDetails(details map[string]interface{}) *BrowserError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BrowserError.
func GetCategory(err error) ErrorCategory {
	var be *BrowserError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BrowserError.
func GetCode(err error) string {
	var be *BrowserError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsUserFacing reports whether err should be shown as a warning rather than
// an error: user input and precondition failures change no state.
func IsUserFacing(err error) bool {
	switch GetCategory(err) {
	case ErrCategoryUserInput, ErrCategoryPrecondition, ErrCategoryValidation:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewUserInputError(code, message string) *BrowserError {
	return New(ErrCategoryUserInput, code, message)
}

func NewPreconditionError(code, message string) *BrowserError {
	return New(ErrCategoryPrecondition, code, message)
}

func NewValidationError(code, message string) *BrowserError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *BrowserError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *BrowserError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// NewEngineError wraps an error returned by the database driver. Constraint
// violations get their own code so callers can tell them apart.
func NewEngineError(message string, cause error) *BrowserError {
	code := CodeStatementFailed
	if cause != nil {
		msg := strings.ToLower(cause.Error())
		switch {
		case strings.Contains(msg, "constraint failed"):
			code = CodeConstraintFailed
		case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
			code = CodeObjectNotFound
		}
	}
	return Wrap(ErrCategoryEngine, code, message, cause)
}
