package types

import "strings"

// ColumnMetadata describes one column as reported by PRAGMA table_info.
// It is a snapshot taken when a table or row is loaded and is never
// refreshed behind the caller's back.
type ColumnMetadata struct {
	// CID is the zero-based column position
	CID int `json:"cid"`

	// Name is the column name exactly as declared
	Name string `json:"name"`

	// DeclaredType is the declared type text (may be empty)
	DeclaredType string `json:"type"`

	// NotNull reports a NOT NULL constraint
	NotNull bool `json:"not_null"`

	// DefaultValue is the DEFAULT expression text, nil when absent
	DefaultValue *string `json:"default,omitempty"`

	// IsPrimaryKey reports membership in the primary key
	IsPrimaryKey bool `json:"primary_key"`

	// PKOrdinal is the 1-based position inside a composite primary key, 0 otherwise
	PKOrdinal int `json:"pk_ordinal,omitempty"`
}

// IsIntegerPrimaryKey reports whether the column is a primary key declared
// with an INTEGER-ish type. Such columns are filled in by the engine when omitted.
func (c ColumnMetadata) IsIntegerPrimaryKey() bool {
	return c.IsPrimaryKey && strings.Contains(strings.ToUpper(c.DeclaredType), "INT")
}

// ColumnNames returns the names of columns in order.
func ColumnNames(columns []ColumnMetadata) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// ColumnType is the storage class assigned to an inferred or declared column.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
	TypeBlob    ColumnType = "BLOB"
	TypeNumeric ColumnType = "NUMERIC"
)

// ColumnDef is a name/type pair produced by CSV schema inference.
type ColumnDef struct {
	// Name is the normalized column name
	Name string `json:"name"`

	// Type is INTEGER, REAL or TEXT
	Type ColumnType `json:"type"`
}

// ColumnSpec is one column of a CREATE TABLE built from user input.
type ColumnSpec struct {
	Name       string     `json:"name" yaml:"name"`
	Type       ColumnType `json:"type" yaml:"type"`
	PrimaryKey bool       `json:"primary_key" yaml:"primary_key"`
	NotNull    bool       `json:"not_null" yaml:"not_null"`
	Unique     bool       `json:"unique" yaml:"unique"`
	Default    string     `json:"default,omitempty" yaml:"default,omitempty"`
}

// SchemaObject is an index, view or trigger from sqlite_master.
type SchemaObject struct {
	// Type is one of table, index, view, trigger
	Type string `json:"type"`

	// Name is the object name
	Name string `json:"name"`

	// Table is the table the object is attached to (tbl_name)
	Table string `json:"table"`

	// SQL is the stored DDL text, empty for automatic indexes
	SQL string `json:"sql"`
}

// TableSchema groups a table with its columns.
type TableSchema struct {
	Name    string           `json:"name"`
	SQL     string           `json:"sql"`
	Columns []ColumnMetadata `json:"columns"`
}

// Schema is the full schema tree of a database.
type Schema struct {
	Tables   []TableSchema  `json:"tables"`
	Indexes  []SchemaObject `json:"indexes"`
	Views    []SchemaObject `json:"views"`
	Triggers []SchemaObject `json:"triggers"`
}
