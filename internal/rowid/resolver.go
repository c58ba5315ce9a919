// Package rowid identifies the row a displayed snapshot refers to so it can
// be updated or deleted.
//
// Tables with a primary key are addressed by their primary-key values.
// Tables without one fall back to a full-row match over every column, which
// cannot tell duplicate rows apart; Fingerprint and the catalog's duplicate
// report exist to surface that case, and ResolveSnapshot can address such
// rows by the implicit rowid instead when the caller fetched it.
package rowid

import (
	"fmt"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// Column is the name of SQLite's implicit row identifier.
const Column = "rowid"

// ResolvePredicate computes the predicate that selects the row whose
// values were captured in values.
//
// When any column is part of the primary key, the predicate pairs exactly
// those columns, in declared order, with their snapshot values. Otherwise
// every column is paired with its value.
func ResolvePredicate(columns []types.ColumnMetadata, values []any) (types.Predicate, error) {
	if len(columns) != len(values) {
		return nil, lberrors.NewPreconditionError(lberrors.CodeCountMismatch,
			fmt.Sprintf("row has %d values but table has %d columns", len(values), len(columns))).
			WithDetails(map[string]interface{}{"columns": len(columns), "values": len(values)})
	}

	pred := make(types.Predicate, 0, len(columns))
	for i, col := range columns {
		if col.IsPrimaryKey {
			pred = append(pred, types.Term{Column: col.Name, Value: values[i]})
		}
	}
	if len(pred) > 0 {
		return pred, nil
	}

	for i, col := range columns {
		pred = append(pred, types.Term{Column: col.Name, Value: values[i]})
	}
	return pred, nil
}

// ResolveSnapshot resolves a predicate for a fetched row. With useRowID set,
// a key-less row that carries its rowid is addressed by rowid instead of by
// a full-row match; everything else goes through ResolvePredicate.
func ResolveSnapshot(snap types.RowSnapshot, useRowID bool) (types.Predicate, error) {
	if len(snap.Columns) != len(snap.Values) {
		return ResolvePredicate(snap.Columns, snap.Values)
	}
	if useRowID && snap.RowID != nil && !HasPrimaryKey(snap.Columns) {
		return types.Predicate{{Column: Column, Value: *snap.RowID, RowID: true}}, nil
	}
	return ResolvePredicate(snap.Columns, snap.Values)
}

// HasPrimaryKey reports whether any column belongs to the primary key.
func HasPrimaryKey(columns []types.ColumnMetadata) bool {
	for _, c := range columns {
		if c.IsPrimaryKey {
			return true
		}
	}
	return false
}

// IsFullRow reports whether pred was built from every column rather than
// from a key. Full-row predicates may match more than one row. A user
// column that happens to be named rowid is still a full-row term.
func IsFullRow(pred types.Predicate, columns []types.ColumnMetadata) bool {
	if len(pred) == 1 && pred[0].RowID {
		return false
	}
	return !HasPrimaryKey(columns)
}

// ShadowsRowID reports whether a column takes one of the names SQLite
// otherwise resolves to the implicit rowid. Such tables cannot be addressed
// by rowid.
func ShadowsRowID(columns []types.ColumnMetadata) bool {
	for _, c := range columns {
		switch strings.ToLower(c.Name) {
		case "rowid", "oid", "_rowid_":
			return true
		}
	}
	return false
}
