// Package types provides the core data types shared by litebrowse components.
package types

// AutoValue is the placeholder a front end submits for an INTEGER PRIMARY KEY
// it wants the engine to assign. The column is left out of the INSERT.
const AutoValue = "AUTO"

// RowSnapshot is a displayed row: raw values positionally aligned with the
// column metadata captured when the row was fetched.
type RowSnapshot struct {
	// Columns is the metadata at fetch time
	Columns []ColumnMetadata `json:"columns"`

	// Values holds the raw engine values in column order
	Values []any `json:"values"`

	// RowID is the implicit rowid when it was fetched, nil otherwise
	RowID *int64 `json:"rowid,omitempty"`
}

// Term is one column = value equality inside a Predicate.
type Term struct {
	Column string `json:"column"`
	Value  any    `json:"value"`

	// RowID marks the implicit rowid term; Column is then only a label
	RowID bool `json:"rowid,omitempty"`
}

// Predicate is an ordered AND of equalities selecting one row.
type Predicate []Term

// Columns returns the column names referenced by the predicate.
func (p Predicate) Columns() []string {
	cols := make([]string, len(p))
	for i, t := range p {
		cols[i] = t.Column
	}
	return cols
}

// Values returns the bound parameter values in order.
func (p Predicate) Values() []any {
	vals := make([]any, len(p))
	for i, t := range p {
		vals[i] = t.Value
	}
	return vals
}

// ResultSet is the grid returned by a read query or table load.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}
