package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/litebrowse/litebrowse/internal/catalog"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/rowid"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// TableData is one page of a table together with the column metadata
// captured when it was loaded.
type TableData struct {
	Table   string                 `json:"table"`
	Columns []types.ColumnMetadata `json:"columns"`
	Rows    [][]any                `json:"rows"`

	// RowIDs holds each row's rowid when it was fetched
	RowIDs []int64 `json:"rowids,omitempty"`

	// Total is the table's row count, ignoring filter and paging
	Total int64 `json:"total"`
}

// Snapshot returns row i as a snapshot suitable for EditRow and DeleteRow.
func (d *TableData) Snapshot(i int) (types.RowSnapshot, error) {
	if i < 0 || i >= len(d.Rows) {
		return types.RowSnapshot{}, lberrors.NewUserInputError(lberrors.CodeNoRowSelected,
			fmt.Sprintf("row %d is out of range (table shows %d rows)", i, len(d.Rows)))
	}
	snap := types.RowSnapshot{Columns: d.Columns, Values: d.Rows[i]}
	if d.RowIDs != nil {
		id := d.RowIDs[i]
		snap.RowID = &id
	}
	return snap, nil
}

// EditOptions adjusts a single update or delete.
type EditOptions struct {
	// AllowMultiple lets a full-row match touch several identical rows
	AllowMultiple bool
}

// LoadTable loads the current table.
func (s *Session) LoadTable(ctx context.Context, opts sqlgen.SelectOptions) (*TableData, error) {
	table, err := s.currentTable()
	if err != nil {
		return nil, err
	}
	return s.Rows(ctx, table, opts)
}

// Rows loads table. Filter is matched against every column; the page size
// applies when opts.Limit is zero. Values are returned as stored, with no
// driver conversion of date or boolean columns, so they can be fed back
// into a row predicate unchanged.
func (s *Session) Rows(ctx context.Context, table string, opts sqlgen.SelectOptions) (*TableData, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cat := catalog.New(db)
	columns, err := cat.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	if opts.Limit == 0 {
		opts.Limit = s.opts.PageSize
	}
	opts.Columns = columns
	if opts.Filter != "" {
		opts.FilterColumns = types.ColumnNames(columns)
	}
	if s.opts.UseRowID && !rowid.HasPrimaryKey(columns) && !rowid.ShadowsRowID(columns) {
		withoutRowID, err := cat.IsWithoutRowID(ctx, table)
		if err != nil {
			return nil, err
		}
		opts.WithRowID = !withoutRowID
	}

	st, err := sqlgen.BuildSelect(table, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		s.record("select", table, time.Since(start), err)
		return nil, lberrors.NewEngineError("failed to load table "+table, err)
	}

	data := &TableData{Table: table, Columns: columns, Rows: [][]any{}}
	if opts.WithRowID {
		data.RowIDs = []int64{}
	}
	err = catalog.EachRawRow(rows, func(_ []string, values []any) error {
		if opts.WithRowID {
			id, ok := values[0].(int64)
			if !ok {
				return fmt.Errorf("unexpected rowid value %v", values[0])
			}
			data.RowIDs = append(data.RowIDs, id)
			values = values[1:]
		}
		row := make([]any, len(values))
		copy(row, values)
		data.Rows = append(data.Rows, row)
		return nil
	})
	s.record("select", table, time.Since(start), err)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to load table "+table, err)
	}

	if data.Total, err = cat.RowCount(ctx, table); err != nil {
		return nil, err
	}
	return data, nil
}

// AddRow inserts a row into the current table.
func (s *Session) AddRow(ctx context.Context, values []any) (int64, error) {
	table, err := s.currentTable()
	if err != nil {
		return 0, err
	}
	return s.Insert(ctx, table, values)
}

// Insert inserts one row into table. values align with the table's columns;
// types.AutoValue on a primary key column lets the engine assign it and an
// empty string inserts NULL. It returns the new row's rowid.
func (s *Session) Insert(ctx context.Context, table string, values []any) (int64, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	columns, err := catalog.New(db).TableColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	st, err := sqlgen.BuildInsert(table, columns, values)
	if err != nil {
		return 0, err
	}
	res, err := s.exec(ctx, db, table, st)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// EditRow updates the current table's row captured in snap.
func (s *Session) EditRow(ctx context.Context, snap types.RowSnapshot, newValues []any) (int64, error) {
	table, err := s.currentTable()
	if err != nil {
		return 0, err
	}
	return s.Update(ctx, table, snap, newValues, EditOptions{})
}

// Update sets every column of the row captured in snap to newValues.
func (s *Session) Update(ctx context.Context, table string, snap types.RowSnapshot, newValues []any, eo EditOptions) (int64, error) {
	return s.mutate(ctx, table, snap, eo, func(columns []types.ColumnMetadata, pred types.Predicate) (sqlgen.Statement, error) {
		return sqlgen.BuildUpdate(table, columns, newValues, pred)
	})
}

// DeleteRow deletes the current table's row captured in snap.
func (s *Session) DeleteRow(ctx context.Context, snap types.RowSnapshot) (int64, error) {
	table, err := s.currentTable()
	if err != nil {
		return 0, err
	}
	return s.Delete(ctx, table, snap, EditOptions{})
}

// Delete removes the row captured in snap from table.
func (s *Session) Delete(ctx context.Context, table string, snap types.RowSnapshot, eo EditOptions) (int64, error) {
	return s.mutate(ctx, table, snap, eo, func(_ []types.ColumnMetadata, pred types.Predicate) (sqlgen.Statement, error) {
		return sqlgen.BuildDelete(table, pred)
	})
}

// mutate runs an update or delete. The snapshot's columns must still
// describe table; the predicate is then resolved from the catalog's
// metadata. A full-row predicate is first counted: no match and, unless
// allowed, more than one match are refused before the statement is issued.
func (s *Session) mutate(ctx context.Context, table string, snap types.RowSnapshot, eo EditOptions,
	build func([]types.ColumnMetadata, types.Predicate) (sqlgen.Statement, error)) (int64, error) {
	if len(snap.Values) == 0 {
		return 0, lberrors.NewUserInputError(lberrors.CodeNoRowSelected, "no row selected")
	}

	db, release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	columns, err := catalog.New(db).TableColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	if err := checkSnapshotColumns(table, snap.Columns, columns); err != nil {
		return 0, err
	}
	snap.Columns = columns

	pred, err := rowid.ResolveSnapshot(snap, s.opts.UseRowID && !rowid.ShadowsRowID(columns))
	if err != nil {
		return 0, err
	}
	st, err := build(columns, pred)
	if err != nil {
		return 0, err
	}

	if rowid.IsFullRow(pred, columns) {
		n, err := s.matchCount(ctx, db, table, pred)
		if err != nil {
			return 0, err
		}
		switch {
		case n == 0:
			return 0, lberrors.NewPreconditionError(lberrors.CodeRowNotFound, "the row no longer exists")
		case n > 1 && !(eo.AllowMultiple || s.opts.AllowMultiple):
			return 0, lberrors.NewPreconditionError(lberrors.CodeAmbiguousRow,
				fmt.Sprintf("the row matches %d identical rows; allow multiple to change all of them", n)).
				WithDetails(map[string]interface{}{"matches": n})
		}
	}

	res, err := s.exec(ctx, db, table, st)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return 0, lberrors.NewPreconditionError(lberrors.CodeRowNotFound, "the row no longer exists")
	}
	return affected, nil
}

// checkSnapshotColumns refuses a snapshot whose column names, order or
// primary-key flags differ from the table's current definition.
func checkSnapshotColumns(table string, got, want []types.ColumnMetadata) error {
	same := len(got) == len(want)
	for i := 0; same && i < len(got); i++ {
		same = got[i].Name == want[i].Name && got[i].IsPrimaryKey == want[i].IsPrimaryKey
	}
	if same {
		return nil
	}
	return lberrors.NewPreconditionError(lberrors.CodeStaleSnapshot,
		fmt.Sprintf("the row's columns no longer match table %s; reload it", table)).
		WithDetails(map[string]interface{}{
			"table":    table,
			"expected": types.ColumnNames(want),
			"got":      types.ColumnNames(got),
		})
}

func (s *Session) matchCount(ctx context.Context, db *sql.DB, table string, pred types.Predicate) (int64, error) {
	st, err := sqlgen.BuildMatchCount(table, pred)
	if err != nil {
		return 0, err
	}
	var n int64
	start := time.Now()
	err = db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n)
	s.record("select", table, time.Since(start), err)
	if err != nil {
		return 0, lberrors.NewEngineError("failed to match row", err)
	}
	return n, nil
}

// CreateTable creates table from column specs.
func (s *Session) CreateTable(ctx context.Context, table string, specs []types.ColumnSpec, ifNotExists bool) error {
	st, err := sqlgen.BuildCreateTable(table, specs, ifNotExists)
	if err != nil {
		return err
	}
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	_, err = s.exec(ctx, db, table, st)
	return err
}

// DropTable drops table, clearing the selection when it was current.
func (s *Session) DropTable(ctx context.Context, table string) error {
	st, err := sqlgen.BuildDropTable(table, false)
	if err != nil {
		return err
	}
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if _, err := s.exec(ctx, db, table, st); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current == table {
		s.current = ""
	}
	s.mu.Unlock()
	if s.opts.Stats != nil {
		s.opts.Stats.ForgetTable(table)
	}
	return nil
}

// TruncateTable deletes every row of table and returns how many were removed.
func (s *Session) TruncateTable(ctx context.Context, table string) (int64, error) {
	st, err := sqlgen.BuildTruncate(table)
	if err != nil {
		return 0, err
	}
	db, release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	res, err := s.exec(ctx, db, table, st)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// TableInfo returns table's columns and row count.
func (s *Session) TableInfo(ctx context.Context, table string) (*catalog.TableInfo, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return catalog.New(db).TableInfo(ctx, table)
}
