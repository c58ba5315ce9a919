package export

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/litebrowse/litebrowse/internal/catalog"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
)

// Execer runs scripts, inside a transaction when needed.
// *sql.DB and *sql.Conn satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type masterEntry struct {
	name string
	kind string
	sql  string
}

// DumpSQL writes the whole database as a replayable statement stream:
// table definitions with their rows, then indexes, triggers and views in
// creation order, wrapped in one transaction.
func DumpSQL(ctx context.Context, q catalog.Querier, w io.Writer) error {
	bw := bufio.NewWriter(w)

	tables, err := readMaster(ctx, q,
		`SELECT name, type, sql FROM sqlite_master WHERE sql NOT NULL AND type = 'table' ORDER BY name`)
	if err != nil {
		return err
	}
	others, err := readMaster(ctx, q,
		`SELECT name, type, sql FROM sqlite_master WHERE sql NOT NULL AND type IN ('index', 'trigger', 'view')`)
	if err != nil {
		return err
	}

	fmt.Fprintln(bw, "BEGIN TRANSACTION;")
	var sequence bool
	for _, t := range tables {
		switch {
		case t.name == "sqlite_sequence":
			// written last, once the AUTOINCREMENT tables that create it exist
			sequence = true
			continue
		case t.name == "sqlite_stat1":
			fmt.Fprintln(bw, "ANALYZE sqlite_master;")
		case strings.HasPrefix(t.name, "sqlite_"):
			continue
		default:
			fmt.Fprintf(bw, "%s;\n", t.sql)
		}

		if err := dumpRows(ctx, q, bw, t.name); err != nil {
			return err
		}
	}
	if sequence {
		fmt.Fprintln(bw, `DELETE FROM "sqlite_sequence";`)
		if err := dumpRows(ctx, q, bw, "sqlite_sequence"); err != nil {
			return err
		}
	}
	for _, o := range others {
		fmt.Fprintf(bw, "%s;\n", o.sql)
	}
	fmt.Fprintln(bw, "COMMIT;")

	if err := bw.Flush(); err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to write SQL dump", err)
	}
	return nil
}

func dumpRows(ctx context.Context, q catalog.Querier, w io.Writer, table string) error {
	quoted := ident.QuoteAny(table)
	_, rows, err := catalog.New(q).ScanStored(ctx, table)
	if err != nil {
		return err
	}

	var line strings.Builder
	err = catalog.EachRawRow(rows, func(_ []string, values []any) error {
		line.Reset()
		line.WriteString("INSERT INTO ")
		line.WriteString(quoted)
		line.WriteString(" VALUES(")
		for i, v := range values {
			if i > 0 {
				line.WriteByte(',')
			}
			line.WriteString(SQLLiteral(v))
		}
		line.WriteString(");\n")
		_, err := io.WriteString(w, line.String())
		return err
	})
	if err != nil {
		return lberrors.NewEngineError("failed to dump table "+table, err)
	}
	return nil
}

func readMaster(ctx context.Context, q catalog.Querier, query string) ([]masterEntry, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to read schema", err)
	}
	defer rows.Close()

	var out []masterEntry
	for rows.Next() {
		var e masterEntry
		if err := rows.Scan(&e.name, &e.kind, &e.sql); err != nil {
			return nil, lberrors.NewEngineError("failed to read schema", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, lberrors.NewEngineError("failed to read schema", err)
	}
	return out, nil
}

// ReplaySQL executes a script of statements, such as a dump written by
// DumpSQL. A script that manages its own transaction runs as is and is
// rolled back on failure; any other script runs inside one transaction.
func ReplaySQL(ctx context.Context, db Execer, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return lberrors.NewStorageError(lberrors.CodeFileIO, "failed to read SQL script", err)
	}
	script := string(data)
	if strings.TrimSpace(script) == "" {
		return lberrors.NewUserInputError(lberrors.CodeEmptyQuery, "the SQL script is empty")
	}

	if sqlgen.LeadingKeyword(script) == "BEGIN" {
		if _, err := db.ExecContext(ctx, script); err != nil {
			// ignore "no transaction is active" when the failure came after COMMIT
			db.ExecContext(ctx, "ROLLBACK")
			return lberrors.NewEngineError("SQL import failed", err)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return lberrors.NewEngineError("failed to begin transaction", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return lberrors.NewEngineError("SQL import failed", err)
	}
	if err := tx.Commit(); err != nil {
		return lberrors.NewEngineError("failed to commit SQL import", err)
	}
	return nil
}
