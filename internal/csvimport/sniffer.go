package csvimport

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// Sniffer lets an in-memory DuckDB run read_csv_auto over the sample and
// maps the detected column types onto INTEGER, REAL and TEXT. Column names
// still come from NormalizeName so they match the other strategies.
type Sniffer struct {
	Rows int
}

func (s *Sniffer) SampleRows() int {
	if s.Rows <= 0 {
		return 1000
	}
	return s.Rows
}

func (s *Sniffer) Infer(ctx context.Context, header []string, rows [][]string) ([]types.ColumnDef, error) {
	if len(rows) == 0 {
		return nil, noDataRows()
	}

	tempDir, err := os.MkdirTemp("", "litebrowse-sniff")
	if err != nil {
		return nil, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "sample.csv")
	if err := writeSample(path, header, rows); err != nil {
		return nil, err
	}

	duck, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, lberrors.NewInternalError("failed to open DuckDB", err)
	}
	defer duck.Close()

	query := fmt.Sprintf("DESCRIBE SELECT * FROM read_csv_auto(%s, header=true, all_varchar=false)",
		ident.QuoteLiteral(path))
	res, err := duck.QueryContext(ctx, query)
	if err != nil {
		return nil, lberrors.NewEngineError("DuckDB could not read the CSV sample", err)
	}
	defer res.Close()

	cols, err := res.Columns()
	if err != nil {
		return nil, lberrors.NewEngineError("DuckDB could not describe the CSV sample", err)
	}

	var detected []string
	for res.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := res.Scan(ptrs...); err != nil {
			return nil, lberrors.NewEngineError("DuckDB could not describe the CSV sample", err)
		}
		// column_name, column_type, null, key, default, extra
		detected = append(detected, fmt.Sprint(values[1]))
	}
	if err := res.Err(); err != nil {
		return nil, lberrors.NewEngineError("DuckDB could not describe the CSV sample", err)
	}

	defs := make([]types.ColumnDef, len(header))
	for i, h := range header {
		defs[i].Name = NormalizeName(h)
		defs[i].Type = types.TypeText
		if i < len(detected) {
			defs[i].Type = duckType(detected[i])
		}
	}
	return defs, nil
}

func writeSample(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write CSV sample", err)
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write CSV sample", err)
	}
	if err := f.Close(); err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write CSV sample", err)
	}
	return nil
}

func duckType(t string) types.ColumnType {
	t = strings.ToUpper(t)
	switch {
	case strings.HasSuffix(t, "INT"), strings.HasSuffix(t, "INTEGER"):
		return types.TypeInteger
	case strings.HasPrefix(t, "DOUBLE"), strings.HasPrefix(t, "FLOAT"),
		strings.HasPrefix(t, "REAL"), strings.HasPrefix(t, "DECIMAL"):
		return types.TypeReal
	}
	return types.TypeText
}
