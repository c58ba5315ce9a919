package csvimport

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// TxBeginner starts a transaction. *sql.DB and *sql.Conn satisfy it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Result describes a finished import.
type Result struct {
	Table   string            `json:"table"`
	Columns []types.ColumnDef `json:"columns"`
	Rows    int64             `json:"rows"`
}

// Importer loads CSV files into tables.
type Importer struct {
	db         TxBeginner
	inferencer Inferencer
	logger     *slog.Logger
}

// NewImporter creates an importer. A nil inferencer means SingleSample.
func NewImporter(db TxBeginner, inferencer Inferencer, logger *slog.Logger) *Importer {
	if inferencer == nil {
		inferencer = SingleSample{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{db: db, inferencer: inferencer, logger: logger}
}

// Import reads a CSV stream with a header line, creates table if it does not
// exist and inserts every data row. All of it runs in one transaction: on
// any failure the database is left as it was.
//
// Cells are bound as text and converted by the engine according to the
// column affinity.
func (im *Importer) Import(ctx context.Context, r io.Reader, table string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, lberrors.NewPreconditionError(lberrors.CodeNoDataRows, "the CSV file is empty")
	}
	if err != nil {
		return nil, csvError(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var sample [][]string
	for len(sample) < im.inferencer.SampleRows() {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		sample = append(sample, rec)
	}

	defs, err := im.inferencer.Infer(ctx, header, sample)
	if err != nil {
		return nil, err
	}
	create, err := sqlgen.BuildCreateFromDefs(table, defs)
	if err != nil {
		return nil, err
	}
	insert, err := sqlgen.BuildBulkInsert(table, len(defs))
	if err != nil {
		return nil, err
	}

	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to begin import transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				im.logger.Warn("import rollback failed", "table", table, "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, create.SQL); err != nil {
		return nil, lberrors.NewEngineError("failed to create table", err)
	}

	stmt, err := tx.PrepareContext(ctx, insert.SQL)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to prepare insert", err)
	}
	defer stmt.Close()

	var n int64
	insertRow := func(rec []string) error {
		args := make([]any, len(rec))
		for i, v := range rec {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return lberrors.NewEngineError(fmt.Sprintf("failed to insert CSV row %d", n+1), err)
		}
		n++
		return nil
	}

	for _, rec := range sample {
		if err = insertRow(rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			err = csvError(readErr)
			return nil, err
		}
		if err = insertRow(rec); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, lberrors.NewEngineError("failed to commit import", err)
	}

	im.logger.Info("csv imported", "table", table, "rows", n, "columns", len(defs))
	return &Result{Table: table, Columns: defs, Rows: n}, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return lberrors.Wrap(lberrors.ErrCategoryUserInput, lberrors.CodeInvalidFormat,
			fmt.Sprintf("malformed CSV at line %d", pe.Line), err)
	}
	return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to read CSV", err)
}
