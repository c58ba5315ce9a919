package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"path"
	"path/filepath"
	"strings"

	"github.com/litebrowse/litebrowse/internal/catalog"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/internal/storage"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// JSONOptions controls JSON output.
type JSONOptions struct {
	// Indent is the per-level indent; empty writes compact JSON.
	Indent string
}

// WriteTableCSV writes table as CSV: a header line with the exact column
// names, then one line per row.
func WriteTableCSV(ctx context.Context, q catalog.Querier, table string, w io.Writer) (int64, error) {
	if err := ident.Validate("table", table); err != nil {
		return 0, err
	}
	return writeCSV(ctx, q, table, w)
}

func writeCSV(ctx context.Context, q catalog.Querier, table string, w io.Writer) (int64, error) {
	columns, rows, err := catalog.New(q).ScanStored(ctx, table)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(types.ColumnNames(columns)); err != nil {
		rows.Close()
		return 0, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write CSV", err)
	}
	var n int64
	record := make([]string, len(columns))
	err = catalog.EachRawRow(rows, func(_ []string, values []any) error {
		for i, v := range values {
			record[i] = CellText(v)
		}
		n++
		return cw.Write(record)
	})
	if err != nil {
		return 0, lberrors.NewEngineError("failed to export table "+table, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write CSV", err)
	}
	return n, nil
}

// WriteAllCSV writes one <table>.csv per table into dir, which may be a
// local directory or an s3://bucket/prefix. It returns the written locations.
func WriteAllCSV(ctx context.Context, q catalog.Querier, artifacts *storage.Artifacts, dir string) ([]string, error) {
	tables, err := catalog.New(q).ListTables(ctx)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, len(tables))
	for _, t := range tables {
		location := joinLocation(dir, safeFileName(t)+".csv")
		w, err := artifacts.Create(ctx, location)
		if err != nil {
			return written, err
		}
		if _, err := writeCSV(ctx, q, t, w); err != nil {
			w.Close()
			return written, err
		}
		if err := w.Close(); err != nil {
			return written, err
		}
		written = append(written, location)
	}
	return written, nil
}

// WriteTableJSON writes table as a flat JSON array of row objects.
func WriteTableJSON(ctx context.Context, q catalog.Querier, table string, w io.Writer, opts JSONOptions) error {
	if err := ident.Validate("table", table); err != nil {
		return err
	}
	rows, err := tableObjects(ctx, q, table)
	if err != nil {
		return err
	}
	return encodeJSON(w, rows, opts)
}

// WriteDatabaseJSON writes every table as one JSON object keyed by table
// name, each value an array of row objects.
func WriteDatabaseJSON(ctx context.Context, q catalog.Querier, w io.Writer, opts JSONOptions) error {
	tables, err := catalog.New(q).ListTables(ctx)
	if err != nil {
		return err
	}

	db := make(orderedObject, 0, len(tables))
	for _, t := range tables {
		rows, err := tableObjects(ctx, q, t)
		if err != nil {
			return err
		}
		db = append(db, field{Key: t, Value: rows})
	}
	return encodeJSON(w, db, opts)
}

func tableObjects(ctx context.Context, q catalog.Querier, table string) ([]orderedObject, error) {
	_, rows, err := catalog.New(q).ScanStored(ctx, table)
	if err != nil {
		return nil, err
	}

	out := []orderedObject{}
	err = catalog.EachRow(rows, func(columns []string, values []any) error {
		obj := make(orderedObject, len(columns))
		for i, c := range columns {
			obj[i] = field{Key: c, Value: values[i]}
		}
		out = append(out, obj)
		return nil
	})
	if err != nil {
		return nil, lberrors.NewEngineError("failed to export table "+table, err)
	}
	return out, nil
}

func encodeJSON(w io.Writer, v any, opts JSONOptions) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if opts.Indent != "" {
		enc.SetIndent("", opts.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write JSON", err)
	}
	return nil
}

type field struct {
	Key   string
	Value any
}

// orderedObject marshals as a JSON object with keys in column order.
type orderedObject []field

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(jsonValue(f.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue maps values encoding/json cannot represent: NaN and the
// infinities become null.
func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}

func joinLocation(dir, name string) string {
	if strings.HasPrefix(dir, "s3://") {
		return strings.TrimSuffix(dir, "/") + "/" + path.Clean(name)
	}
	return filepath.Join(dir, name)
}

func safeFileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
}
