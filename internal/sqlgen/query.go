package sqlgen

import (
	"strings"
	"unicode"
)

// Template is a named starter statement for the query editor.
type Template struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Templates lists the editor's starter statements in menu order.
var Templates = []Template{
	{"SELECT *", "SELECT * FROM table_name WHERE condition;"},
	{"INSERT INTO", "INSERT INTO table_name (column1, column2) VALUES (value1, value2);"},
	{"UPDATE", "UPDATE table_name SET column1 = value1 WHERE condition;"},
	{"DELETE FROM", "DELETE FROM table_name WHERE condition;"},
	{"CREATE TABLE", "CREATE TABLE table_name (\n  id INTEGER PRIMARY KEY,\n  column1 TEXT NOT NULL\n);"},
	{"ALTER TABLE", "ALTER TABLE table_name ADD COLUMN column_name TEXT;"},
	{"DROP TABLE", "DROP TABLE IF EXISTS table_name;"},
}

// LookupTemplate finds a template by name, case-insensitively.
func LookupTemplate(name string) (Template, bool) {
	for _, t := range Templates {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

// readKeywords start statements that produce a result grid.
var readKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"EXPLAIN": true,
	"VALUES":  true,
}

// LeadingKeyword returns the first keyword of sql in upper case, skipping
// whitespace, line comments and block comments.
func LeadingKeyword(sql string) string {
	s := sql
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "("):
			s = s[1:]
			continue
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// IsReadQuery reports whether sql returns rows and should be run as a query
// rather than executed for its rows-affected count. Data changes with a
// RETURNING clause return rows too.
func IsReadQuery(sql string) bool {
	switch kw := LeadingKeyword(sql); kw {
	case "INSERT", "REPLACE", "UPDATE", "DELETE":
		return hasKeyword(sql, "RETURNING")
	default:
		return readKeywords[kw]
	}
}

// hasKeyword reports whether keyword appears as a bare word in sql, outside
// string literals, quoted identifiers and comments.
func hasKeyword(sql, keyword string) bool {
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				return false
			}
			i += end + 2
		case c == '[':
			end := strings.IndexByte(sql[i+1:], ']')
			if end < 0 {
				return false
			}
			i += end + 2
		case strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				return false
			}
			i += end + 1
		case strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 4
		case isWordByte(c):
			start := i
			for i < len(sql) && isWordByte(sql[i]) {
				i++
			}
			if strings.EqualFold(sql[start:i], keyword) {
				return true
			}
		default:
			i++
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// StatementKind classifies sql for statistics: select, insert, update,
// delete, ddl, pragma or other.
func StatementKind(sql string) string {
	switch kw := LeadingKeyword(sql); kw {
	case "SELECT", "WITH", "VALUES":
		return "select"
	case "INSERT", "REPLACE":
		return "insert"
	case "UPDATE":
		return "update"
	case "DELETE":
		return "delete"
	case "CREATE", "DROP", "ALTER":
		return "ddl"
	case "PRAGMA", "EXPLAIN":
		return "pragma"
	default:
		return "other"
	}
}
