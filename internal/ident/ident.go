// Package ident validates and quotes SQL identifiers.
//
// Table and column names cannot be bound as statement parameters, so every
// name that is interpolated into generated SQL goes through Quote, which
// rejects anything outside a conservative charset before double-quoting it.
package ident

import (
	"fmt"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

// MaxLength is the longest identifier accepted.
const MaxLength = 128

// Valid checks if name is a safe SQL identifier: a letter or underscore
// followed by letters, digits or underscores.
func Valid(name string) bool {
	if len(name) == 0 || len(name) > MaxLength {
		return false
	}
	// First character must be a letter or underscore
	first := name[0]
	if (first < 'a' || first > 'z') && (first < 'A' || first > 'Z') && first != '_' {
		return false
	}
	// Subsequent characters can be letters, digits, or underscores
	for i := 1; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// Validate returns a validation error naming the offending identifier.
func Validate(kind, name string) error {
	if !Valid(name) {
		return lberrors.NewValidationError(lberrors.CodeInvalidIdentifier,
			fmt.Sprintf("invalid %s name %q: use letters, digits and underscores, starting with a letter or underscore", kind, name)).
			WithDetails(map[string]interface{}{"kind": kind, "name": name})
	}
	return nil
}

// Quote validates name and returns it double-quoted.
func Quote(kind, name string) (string, error) {
	if err := Validate(kind, name); err != nil {
		return "", err
	}
	return `"` + name + `"`, nil
}

// QuoteAll quotes every name, stopping at the first invalid one.
func QuoteAll(kind string, names []string) ([]string, error) {
	quoted := make([]string, len(names))
	for i, n := range names {
		q, err := Quote(kind, n)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
	}
	return quoted, nil
}

// QuoteLiteral renders s as an SQL string literal. Only used where the
// engine has no parameter slot, such as SQL dump output.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteAny double-quotes an arbitrary existing object name for dump output,
// doubling embedded quotes. Names read back from the catalog may not pass
// Valid but still have to be reproduced exactly.
func QuoteAny(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
