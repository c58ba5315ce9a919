package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// ColumnTypes are the declared types offered by the table builder.
var ColumnTypes = []types.ColumnType{
	types.TypeInteger,
	types.TypeText,
	types.TypeReal,
	types.TypeBlob,
	types.TypeNumeric,
}

var numericLiteral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// defaultKeywords may appear unquoted after DEFAULT.
var defaultKeywords = map[string]bool{
	"NULL":              true,
	"TRUE":              true,
	"FALSE":             true,
	"CURRENT_TIME":      true,
	"CURRENT_DATE":      true,
	"CURRENT_TIMESTAMP": true,
}

// DefaultLiteral renders a user-supplied DEFAULT value. Numbers, keywords
// and well-formed string literals pass through; anything else is quoted as
// a string literal.
func DefaultLiteral(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case numericLiteral.MatchString(v):
		return v
	case defaultKeywords[strings.ToUpper(v)]:
		return strings.ToUpper(v)
	case isStringLiteral(v):
		return v
	default:
		return ident.QuoteLiteral(v)
	}
}

func isStringLiteral(v string) bool {
	if len(v) < 2 || v[0] != '\'' || v[len(v)-1] != '\'' {
		return false
	}
	inner := v[1 : len(v)-1]
	return !strings.Contains(strings.ReplaceAll(inner, "''", ""), "'")
}

func validType(t types.ColumnType) bool {
	for _, ct := range ColumnTypes {
		if strings.EqualFold(string(t), string(ct)) {
			return true
		}
	}
	return false
}

// BuildCreateTable renders CREATE TABLE from builder input. Columns without
// a name are skipped. One primary-key column is declared inline; several
// become a table-level PRIMARY KEY constraint.
func BuildCreateTable(table string, specs []types.ColumnSpec, ifNotExists bool) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}

	pkCount := 0
	for _, s := range specs {
		if s.PrimaryKey && strings.TrimSpace(s.Name) != "" {
			pkCount++
		}
	}

	var defs []string
	var pks []string
	seen := make(map[string]bool)
	for _, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		qc, err := ident.Quote("column", s.Name)
		if err != nil {
			return Statement{}, err
		}
		lower := strings.ToLower(s.Name)
		if seen[lower] {
			return Statement{}, lberrors.NewValidationError(lberrors.CodeInvalidColumnDef,
				fmt.Sprintf("duplicate column name %q", s.Name))
		}
		seen[lower] = true

		colType := s.Type
		if colType == "" {
			colType = types.TypeText
		}
		if !validType(colType) {
			return Statement{}, lberrors.NewValidationError(lberrors.CodeInvalidColumnDef,
				fmt.Sprintf("unsupported column type %q for %s", s.Type, s.Name))
		}
		if s.PrimaryKey {
			pks = append(pks, qc)
		}
		defs = append(defs, columnDef(qc, s, strings.ToUpper(string(colType)), pkCount == 1))
	}

	if len(defs) == 0 {
		return Statement{}, lberrors.NewUserInputError(lberrors.CodeMissingArgument, "please enter at least one column name")
	}
	if len(pks) > 1 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	head := "CREATE TABLE "
	if ifNotExists {
		head = "CREATE TABLE IF NOT EXISTS "
	}
	return Statement{SQL: head + qt + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"}, nil
}

// columnDef renders "name TYPE [PRIMARY KEY] [NOT NULL] [UNIQUE] [DEFAULT x]".
func columnDef(qc string, s types.ColumnSpec, colType string, inlinePK bool) string {
	def := qc + " " + colType
	if s.PrimaryKey && inlinePK {
		def += " PRIMARY KEY"
	}
	if s.NotNull {
		def += " NOT NULL"
	}
	if s.Unique {
		def += " UNIQUE"
	}
	if strings.TrimSpace(s.Default) != "" {
		def += " DEFAULT " + DefaultLiteral(s.Default)
	}
	return def
}

// BuildCreateFromDefs renders CREATE TABLE IF NOT EXISTS for an inferred
// CSV schema.
func BuildCreateFromDefs(table string, defs []types.ColumnDef) (Statement, error) {
	specs := make([]types.ColumnSpec, len(defs))
	for i, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return Statement{}, lberrors.NewValidationError(lberrors.CodeInvalidIdentifier,
				fmt.Sprintf("column %d has an empty header", i+1))
		}
		specs[i] = types.ColumnSpec{Name: d.Name, Type: d.Type}
	}
	stmt, err := BuildCreateTable(table, specs, true)
	if err != nil {
		return Statement{}, err
	}
	stmt.SQL = strings.NewReplacer(" (\n  ", " (", ",\n  ", ", ", "\n)", ")").Replace(stmt.SQL)
	return stmt, nil
}

// BuildBulkInsert builds the positional INSERT used for CSV rows.
func BuildBulkInsert(table string, n int) (Statement, error) {
	qt, err := ident.Quote("table", table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("INSERT INTO %s VALUES (%s)", qt, placeholders(n))}, nil
}
