package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBrowserError_Error(t *testing.T) {
	err := New(ErrCategoryUserInput, CodeEmptyQuery, "please enter an SQL query")
	expected := "[USER_INPUT:EMPTY_QUERY] please enter an SQL query"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBrowserError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("near \"SELEC\": syntax error")
	err := NewEngineError("query failed", cause)
	expected := "[ENGINE:STATEMENT_FAILED] query failed: near \"SELEC\": syntax error"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBrowserError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBrowserError_Is(t *testing.T) {
	err1 := NewPreconditionError(CodeNoDataRows, "first")
	err2 := NewPreconditionError(CodeNoDataRows, "second")
	err3 := NewPreconditionError(CodeCountMismatch, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("import: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestNewEngineError_Codes(t *testing.T) {
	tests := []struct {
		cause error
		code  string
	}{
		{fmt.Errorf("UNIQUE constraint failed: users.email"), CodeConstraintFailed},
		{fmt.Errorf("NOT NULL constraint failed: users.name"), CodeConstraintFailed},
		{fmt.Errorf("no such table: ghosts"), CodeObjectNotFound},
		{fmt.Errorf("no such column: nope"), CodeObjectNotFound},
		{fmt.Errorf("near \"FORM\": syntax error"), CodeStatementFailed},
		{nil, CodeStatementFailed},
	}

	for _, tt := range tests {
		err := NewEngineError("x", tt.cause)
		if err.Code != tt.code {
			t.Errorf("cause %v: code=%s, want %s", tt.cause, err.Code, tt.code)
		}
		if err.Category != ErrCategoryEngine {
			t.Errorf("cause %v: category=%s, want ENGINE", tt.cause, err.Category)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewUserInputError(CodeNoRowSelected, "select a row"), true},
		{NewPreconditionError(CodeNoDataRows, "empty csv"), true},
		{NewValidationError(CodeInvalidIdentifier, "bad name"), true},
		{NewEngineError("failed", fmt.Errorf("boom")), false},
		{NewInternalError("oops", nil), false},
		{fmt.Errorf("plain"), false},
	}
	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := NewValidationError(CodeInvalidIdentifier, "bad name")
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-BrowserError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := NewUserInputError(CodeNoTableSelected, "select a table first")
	if GetCode(err) != CodeNoTableSelected {
		t.Errorf("got %q, want %q", GetCode(err), CodeNoTableSelected)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-BrowserError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewPreconditionError(CodeCountMismatch, "3 columns, 2 values")
	detailed := err.WithDetails(map[string]interface{}{"columns": 3, "values": 2})

	if detailed.Details["columns"] != 3 {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}

	u := NewUserInputError(CodeEmptyQuery, "empty")
	if u.Category != ErrCategoryUserInput {
		t.Error("NewUserInputError mismatch")
	}
}
