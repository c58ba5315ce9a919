// Package sqlgen builds the statements litebrowse issues on the user's
// behalf. Values always travel as bound parameters; identifiers are
// validated and quoted by package ident before they reach the SQL text.
package sqlgen

import (
	"fmt"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/internal/rowid"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// RowIDAlias is the result column that carries the implicit rowid when a
// table is loaded with SelectOptions.WithRowID.
const RowIDAlias = "__litebrowse_rowid"

// Statement is SQL text plus its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// WhereClause renders pred as an AND of equalities without the WHERE
// keyword. NULL values compare with IS so a full-row match still finds rows
// holding NULLs.
func WhereClause(pred types.Predicate) (string, []any, error) {
	if len(pred) == 0 {
		return "", nil, lberrors.NewPreconditionError(lberrors.CodeNoRowSelected, "empty row predicate")
	}
	parts := make([]string, len(pred))
	args := make([]any, len(pred))
	for i, term := range pred {
		col := rowid.Column
		if !term.RowID {
			q, err := ident.Quote("column", term.Column)
			if err != nil {
				return "", nil, err
			}
			col = q
		}
		op := "="
		if term.Value == nil {
			op = "IS"
		}
		parts[i] = fmt.Sprintf("%s %s ?", col, op)
		args[i] = term.Value
	}
	return strings.Join(parts, " AND "), args, nil
}

// BuildInsert builds an INSERT for one new row. A primary-key column whose
// value is types.AutoValue is left out so the engine assigns it; an empty
// string becomes NULL.
func BuildInsert(table string, columns []types.ColumnMetadata, values []any) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) != len(values) {
		return Statement{}, lberrors.NewPreconditionError(lberrors.CodeCountMismatch,
			fmt.Sprintf("%d values given for %d columns", len(values), len(columns)))
	}

	var names []string
	var args []any
	for i, col := range columns {
		v := values[i]
		if s, ok := v.(string); ok {
			if s == types.AutoValue && col.IsPrimaryKey {
				continue
			}
			if s == "" {
				v = nil
			}
		}
		qc, err := ident.Quote("column", col.Name)
		if err != nil {
			return Statement{}, err
		}
		names = append(names, qc)
		args = append(args, v)
	}

	if len(names) == 0 {
		return Statement{SQL: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qt)}, nil
	}
	return Statement{
		SQL:  fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(names, ", "), placeholders(len(names))),
		Args: args,
	}, nil
}

// BuildUpdate sets every column to its new value on the row selected by pred.
// SET arguments come first, then the predicate's.
func BuildUpdate(table string, columns []types.ColumnMetadata, newValues []any, pred types.Predicate) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	if len(columns) != len(newValues) {
		return Statement{}, lberrors.NewPreconditionError(lberrors.CodeCountMismatch,
			fmt.Sprintf("%d values given for %d columns", len(newValues), len(columns)))
	}
	if len(columns) == 0 {
		return Statement{}, lberrors.NewPreconditionError(lberrors.CodeCountMismatch, "no columns to update")
	}

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(pred))
	for i, col := range columns {
		qc, err := ident.Quote("column", col.Name)
		if err != nil {
			return Statement{}, err
		}
		sets[i] = qc + " = ?"
		args = append(args, newValues[i])
	}

	where, whereArgs, err := WhereClause(pred)
	if err != nil {
		return Statement{}, err
	}
	args = append(args, whereArgs...)

	return Statement{
		SQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s", qt, strings.Join(sets, ", "), where),
		Args: args,
	}, nil
}

// BuildDelete removes the row selected by pred.
func BuildDelete(table string, pred types.Predicate) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	where, args, err := WhereClause(pred)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("DELETE FROM %s WHERE %s", qt, where), Args: args}, nil
}

// BuildMatchCount counts the rows pred selects. Used to refuse ambiguous
// full-row updates and deletes.
func BuildMatchCount(table string, pred types.Predicate) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	where, args, err := WhereClause(pred)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", qt, where), Args: args}, nil
}

// SelectOptions shapes a table load.
type SelectOptions struct {
	// Filter matches rows where any column is LIKE %Filter%
	Filter string `json:"filter,omitempty"`

	// FilterColumns are the columns searched by Filter
	FilterColumns []string `json:"-"`

	// SortColumn orders the result when set
	SortColumn string `json:"sort,omitempty"`

	// Desc sorts descending
	Desc bool `json:"desc,omitempty"`

	// Limit caps the number of rows, 0 means unlimited
	Limit int `json:"limit,omitempty"`

	// Offset skips rows
	Offset int `json:"offset,omitempty"`

	// WithRowID prepends the implicit rowid as RowIDAlias
	WithRowID bool `json:"-"`

	// Columns selects these columns through StoredColumns instead of *
	Columns []types.ColumnMetadata `json:"-"`
}

// StoredColumns renders a select list that reads every column in its stored
// form. The driver turns values of columns declared DATE, DATETIME,
// TIMESTAMP or BOOLEAN into time.Time or bool; those are read through a
// no-op unary plus, which carries no declared type.
func StoredColumns(columns []types.ColumnMetadata) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		q := ident.QuoteAny(c.Name)
		switch strings.ToLower(c.DeclaredType) {
		case "date", "datetime", "timestamp", "boolean":
			parts[i] = "+" + q + " AS " + q
		default:
			parts[i] = q
		}
	}
	return strings.Join(parts, ", ")
}

// BuildSelect builds the table load query.
func BuildSelect(table string, opts SelectOptions) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT ")
	if opts.WithRowID {
		sb.WriteString("rowid AS " + RowIDAlias + ", ")
	}
	if len(opts.Columns) > 0 {
		sb.WriteString(StoredColumns(opts.Columns))
	} else {
		sb.WriteString("*")
	}
	sb.WriteString(" FROM ")
	sb.WriteString(qt)

	if opts.Filter != "" && len(opts.FilterColumns) > 0 {
		likes := make([]string, len(opts.FilterColumns))
		pattern := "%" + opts.Filter + "%"
		for i, c := range opts.FilterColumns {
			qc, err := ident.Quote("column", c)
			if err != nil {
				return Statement{}, err
			}
			likes[i] = qc + " LIKE ?"
			args = append(args, pattern)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(likes, " OR "))
	}

	if opts.SortColumn != "" {
		qc, err := ident.Quote("column", opts.SortColumn)
		if err != nil {
			return Statement{}, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(qc)
		if opts.Desc {
			sb.WriteString(" DESC")
		}
	}

	if opts.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, opts.Offset)
	}

	return Statement{SQL: sb.String(), Args: args}, nil
}

// BuildCount counts every row of table.
func BuildCount(table string) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT COUNT(*) FROM " + qt}, nil
}

// BuildDropTable drops table.
func BuildDropTable(table string, ifExists bool) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	if ifExists {
		return Statement{SQL: "DROP TABLE IF EXISTS " + qt}, nil
	}
	return Statement{SQL: "DROP TABLE " + qt}, nil
}

// BuildTruncate deletes every row of table.
func BuildTruncate(table string) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DELETE FROM " + qt}, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
