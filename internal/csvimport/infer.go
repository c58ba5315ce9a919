// Package csvimport creates and fills a table from a CSV file.
//
// Column types are guessed from sample rows by an Inferencer. The default,
// SingleSample, looks only at the first data row: later rows are never
// checked against the guess and any mismatch surfaces from the engine when
// the row is inserted.
package csvimport

import (
	"context"
	"strconv"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// Inferencer derives a table schema from a CSV header and sample rows.
type Inferencer interface {
	// SampleRows is how many data rows Infer wants to see.
	SampleRows() int

	// Infer returns one ColumnDef per header cell. rows holds at most
	// SampleRows rows and is never empty.
	Infer(ctx context.Context, header []string, rows [][]string) ([]types.ColumnDef, error)
}

// NormalizeName trims a header cell and replaces interior spaces with underscores.
func NormalizeName(header string) string {
	return strings.ReplaceAll(strings.TrimSpace(header), " ", "_")
}

// IsNumber reports whether s parses as a floating point number, allowing
// surrounding whitespace, a sign, an exponent, inf and nan.
func IsNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	// hex floats are Go syntax only
	unsigned := strings.TrimLeft(s, "+-")
	if len(unsigned) > 1 && unsigned[0] == '0' && (unsigned[1] == 'x' || unsigned[1] == 'X') {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return true
	}
	// out-of-range values still parse, as +/-inf
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return true
	}
	return false
}

// InferValue classifies a single sample cell.
func InferValue(v string) types.ColumnType {
	if !IsNumber(v) {
		return types.TypeText
	}
	if strings.Contains(v, ".") {
		return types.TypeReal
	}
	return types.TypeInteger
}

// InferSchema derives column definitions from the header and the first data
// row. A nil firstDataRow means the file had no data rows, which is a
// precondition failure rather than an all-TEXT table. A header cell with no
// matching sample cell is TEXT.
func InferSchema(header, firstDataRow []string) ([]types.ColumnDef, error) {
	if firstDataRow == nil {
		return nil, noDataRows()
	}

	defs := make([]types.ColumnDef, len(header))
	for i, h := range header {
		defs[i].Name = NormalizeName(h)
		defs[i].Type = types.TypeText
		if i < len(firstDataRow) {
			defs[i].Type = InferValue(firstDataRow[i])
		}
	}
	return defs, nil
}

func noDataRows() error {
	return lberrors.NewPreconditionError(lberrors.CodeNoDataRows,
		"the CSV file has a header but no data rows; cannot infer column types")
}

// SingleSample infers types from the first data row only.
type SingleSample struct{}

func (SingleSample) SampleRows() int { return 1 }

func (SingleSample) Infer(_ context.Context, header []string, rows [][]string) ([]types.ColumnDef, error) {
	if len(rows) == 0 {
		return nil, noDataRows()
	}
	return InferSchema(header, rows[0])
}

// MultiRow widens each column across up to Rows sample rows:
// INTEGER, then REAL, then TEXT. Empty cells carry no type information.
// A column whose sampled cells are all empty is TEXT.
type MultiRow struct {
	Rows int
}

func (m MultiRow) SampleRows() int {
	if m.Rows <= 0 {
		return 100
	}
	return m.Rows
}

func (m MultiRow) Infer(_ context.Context, header []string, rows [][]string) ([]types.ColumnDef, error) {
	if len(rows) == 0 {
		return nil, noDataRows()
	}

	defs := make([]types.ColumnDef, len(header))
	for i, h := range header {
		defs[i].Name = NormalizeName(h)

		var seen types.ColumnType
		for _, row := range rows {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			seen = widen(seen, InferValue(row[i]))
			if seen == types.TypeText {
				break
			}
		}
		if seen == "" {
			seen = types.TypeText
		}
		defs[i].Type = seen
	}
	return defs, nil
}

func rank(t types.ColumnType) int {
	switch t {
	case types.TypeInteger:
		return 1
	case types.TypeReal:
		return 2
	case types.TypeText:
		return 3
	}
	return 0
}

func widen(a, b types.ColumnType) types.ColumnType {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// NewInferencer returns the strategy registered under name: "single",
// "multi" or "sniff". sampleRows is ignored by "single".
func NewInferencer(name string, sampleRows int) (Inferencer, error) {
	switch strings.ToLower(name) {
	case "", "single":
		return SingleSample{}, nil
	case "multi":
		return MultiRow{Rows: sampleRows}, nil
	case "sniff":
		return &Sniffer{Rows: sampleRows}, nil
	}
	return nil, lberrors.NewValidationError(lberrors.CodeInvalidFormat,
		"unknown inference strategy "+strconv.Quote(name)+": use single, multi or sniff")
}
