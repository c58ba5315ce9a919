package catalog

import (
	"context"
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/litebrowse/litebrowse/pkg/types"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the catalog needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// textAffinity reports whether a declared type gets TEXT affinity or has no
// declared type at all (expressions, untyped columns).
func textAffinity(declType string) bool {
	t := strings.ToUpper(declType)
	if t == "" {
		return true
	}
	if strings.Contains(t, "INT") {
		return false
	}
	return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
}

// normalize turns driver byte slices for text columns into strings so that
// values round-trip as TEXT when bound back into a predicate. BLOB columns
// keep their bytes.
func normalize(v any, declType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if textAffinity(declType) && utf8.Valid(b) {
		return string(b)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// ScanAll reads every row of rows into a ResultSet and closes rows.
func ScanAll(rows *sql.Rows) (*types.ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	declTypes := make([]string, len(columns))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			declTypes[i] = ct.DatabaseTypeName()
		}
	}

	rs := &types.ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = normalize(values[i], declTypes[i])
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// EachRow streams rows to fn without buffering them, then closes rows.
// The slice passed to fn is reused between calls.
func EachRow(rows *sql.Rows, fn func(columns []string, values []any) error) error {
	return eachRow(rows, true, fn)
}

// EachRawRow is EachRow without text normalization: values keep the type
// the driver returned for their storage class.
func EachRawRow(rows *sql.Rows, fn func(columns []string, values []any) error) error {
	return eachRow(rows, false, fn)
}

func eachRow(rows *sql.Rows, normalizeText bool, fn func(columns []string, values []any) error) error {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	declTypes := make([]string, len(columns))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			declTypes[i] = ct.DatabaseTypeName()
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		if normalizeText {
			for i := range values {
				values[i] = normalize(values[i], declTypes[i])
			}
		}
		if err := fn(columns, values); err != nil {
			return err
		}
	}
	return rows.Err()
}
