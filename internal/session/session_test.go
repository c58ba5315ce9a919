package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/logging"
	"github.com/litebrowse/litebrowse/internal/observability"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/internal/storage"
	"github.com/litebrowse/litebrowse/pkg/types"
)

func newSession(t *testing.T, opts Options) (*Session, string) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	s := New(opts)
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, s.Create(context.Background(), path))
	t.Cleanup(func() { s.Close() })
	return s, path
}

func mustExec(t *testing.T, s *Session, query string) {
	t.Helper()
	_, err := s.Execute(context.Background(), query)
	require.NoError(t, err)
}

func TestSession_CreateInsertEditDelete(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.CreateTable(ctx, "people", []types.ColumnSpec{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true},
		{Name: "name", Type: types.TypeText},
	}, false))
	require.NoError(t, s.SelectTable(ctx, "people"))

	_, err := s.AddRow(ctx, []any{types.AutoValue, "Ada"})
	require.NoError(t, err)

	data, err := s.LoadTable(ctx, sqlgen.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []any{int64(1), "Ada"}, data.Rows[0])

	snap, err := data.Snapshot(0)
	require.NoError(t, err)
	n, err := s.EditRow(ctx, snap, []any{int64(1), "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	data, err = s.LoadTable(ctx, sqlgen.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []any{int64(1), "Ada Lovelace"}, data.Rows[0], "primary key must be unchanged")

	snap, err = data.Snapshot(0)
	require.NoError(t, err)
	_, err = s.DeleteRow(ctx, snap)
	require.NoError(t, err)

	data, err = s.LoadTable(ctx, sqlgen.SelectOptions{})
	require.NoError(t, err)
	assert.Empty(t, data.Rows)
	assert.Zero(t, data.Total)
}

func TestSession_NoDatabase(t *testing.T) {
	s := New(Options{Logger: logging.Discard()})
	_, err := s.Tables(context.Background())
	assert.Equal(t, lberrors.CodeNoDatabase, lberrors.GetCode(err))
	assert.False(t, s.IsOpen())
	assert.NoError(t, s.Close())
}

func TestSession_OpenAndCreate(t *testing.T) {
	s, path := newSession(t, Options{})
	ctx := context.Background()
	assert.Equal(t, path, s.Path())

	err := s.Create(ctx, path)
	assert.Equal(t, lberrors.CodeAlreadyExists, lberrors.GetCode(err))

	err = s.Open(ctx, filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, lberrors.CodeObjectNotFound, lberrors.GetCode(err))
	assert.Equal(t, path, s.Path(), "a failed open keeps the current database")

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte(strings.Repeat("not a database ", 100)), 0644))
	err = s.Open(ctx, junk)
	assert.Equal(t, lberrors.ErrCategoryEngine, lberrors.GetCategory(err))

	mustExec(t, s, "CREATE TABLE t (x)")
	require.NoError(t, s.Close())
	require.NoError(t, s.Open(ctx, path))
	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tables)
}

func TestSession_ReadOnly(t *testing.T) {
	s, path := newSession(t, Options{})
	mustExec(t, s, "CREATE TABLE t (x)")
	require.NoError(t, s.Close())

	ro := New(Options{ReadOnly: true, Logger: logging.Discard()})
	require.NoError(t, ro.Open(context.Background(), path))
	defer ro.Close()

	_, err := ro.Execute(context.Background(), "INSERT INTO t VALUES (1)")
	assert.Equal(t, lberrors.ErrCategoryEngine, lberrors.GetCategory(err))
}

func TestSession_TableSelection(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE orders (id INTEGER PRIMARY KEY); CREATE TABLE order_items (id INTEGER); CREATE TABLE users (id INTEGER)")

	_, err := s.LoadTable(ctx, sqlgen.SelectOptions{})
	assert.Equal(t, lberrors.CodeNoTableSelected, lberrors.GetCode(err))
	_, err = s.AddRow(ctx, []any{1})
	assert.Equal(t, lberrors.CodeNoTableSelected, lberrors.GetCode(err))

	filtered, err := s.FilterTables(ctx, "ORDER")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_items", "orders"}, filtered)

	err = s.SelectTable(ctx, "nope")
	assert.Equal(t, lberrors.CodeObjectNotFound, lberrors.GetCode(err))

	require.NoError(t, s.SelectTable(ctx, "orders"))
	assert.Equal(t, "orders", s.CurrentTable())

	require.NoError(t, s.DropTable(ctx, "orders"))
	assert.Empty(t, s.CurrentTable())
}

func TestSession_LoadTableFilterSortPage(t *testing.T) {
	s, _ := newSession(t, Options{PageSize: 2})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE fruit (id INTEGER PRIMARY KEY, name TEXT, color TEXT);
		INSERT INTO fruit (name, color) VALUES ('apple', 'red'), ('banana', 'yellow'), ('cherry', 'red'), ('lime', 'green')`)

	data, err := s.Rows(ctx, "fruit", sqlgen.SelectOptions{SortColumn: "name", Desc: true})
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "lime", data.Rows[0][1])
	assert.Equal(t, int64(4), data.Total)
	assert.Nil(t, data.RowIDs)

	data, err = s.Rows(ctx, "fruit", sqlgen.SelectOptions{Filter: "red", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, data.Rows, 2)

	_, err = data.Snapshot(5)
	assert.Equal(t, lberrors.CodeNoRowSelected, lberrors.GetCode(err))

	_, err = s.Rows(ctx, "fruit; DROP TABLE fruit", sqlgen.SelectOptions{})
	assert.Error(t, err)
}

func TestSession_FullRowMatchGuards(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE log (level TEXT, msg TEXT);
		INSERT INTO log VALUES ('warn', 'disk'), ('warn', 'disk'), ('info', NULL)`)

	data, err := s.Rows(ctx, "log", sqlgen.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 3)

	dup, err := data.Snapshot(0)
	require.NoError(t, err)
	_, err = s.Delete(ctx, "log", dup, EditOptions{})
	assert.Equal(t, lberrors.CodeAmbiguousRow, lberrors.GetCode(err))

	info, err := data.Snapshot(2)
	require.NoError(t, err)
	n, err := s.Update(ctx, "log", info, []any{"info", "rebooted"}, EditOptions{})
	require.NoError(t, err, "NULL cells must still match")
	assert.Equal(t, int64(1), n)

	// the snapshot is stale now
	_, err = s.Delete(ctx, "log", info, EditOptions{})
	assert.Equal(t, lberrors.CodeRowNotFound, lberrors.GetCode(err))

	n, err = s.Delete(ctx, "log", dup, EditOptions{AllowMultiple: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	groups, err := s.DuplicateRows(ctx, "log")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSession_RowIDFallback(t *testing.T) {
	s, _ := newSession(t, Options{UseRowID: true})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE log (level TEXT, msg TEXT);
		INSERT INTO log VALUES ('warn', 'disk'), ('warn', 'disk')`)

	data, err := s.Rows(ctx, "log", sqlgen.SelectOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, data.RowIDs)
	assert.Len(t, data.Rows[0], 2, "rowid is not part of the row values")

	snap, err := data.Snapshot(1)
	require.NoError(t, err)
	require.NotNil(t, snap.RowID)
	n, err := s.Delete(ctx, "log", snap, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	data, err = s.Rows(ctx, "log", sqlgen.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, data.RowIDs)
}

func TestSession_ColumnNamedRowID(t *testing.T) {
	for _, useRowID := range []bool{false, true} {
		s, _ := newSession(t, Options{UseRowID: useRowID})
		ctx := context.Background()
		mustExec(t, s, `CREATE TABLE tags (rowid TEXT); INSERT INTO tags VALUES ('x'), ('x')`)

		data, err := s.Rows(ctx, "tags", sqlgen.SelectOptions{})
		require.NoError(t, err)
		assert.Nil(t, data.RowIDs, "a column shadows the implicit rowid")

		snap, err := data.Snapshot(0)
		require.NoError(t, err)
		_, err = s.Delete(ctx, "tags", snap, EditOptions{})
		assert.Equal(t, lberrors.CodeAmbiguousRow, lberrors.GetCode(err), "useRowID=%v", useRowID)

		info, err := s.TableInfo(ctx, "tags")
		require.NoError(t, err)
		assert.Equal(t, int64(2), info.RowCount)
	}
}

func TestSession_StaleSnapshot(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT); INSERT INTO t VALUES (1, 'a'), (2, 'a')")

	data, err := s.Rows(ctx, "t", sqlgen.SelectOptions{})
	require.NoError(t, err)
	snap, err := data.Snapshot(0)
	require.NoError(t, err)

	mustExec(t, s, "ALTER TABLE t ADD COLUMN note TEXT")
	_, err = s.Update(ctx, "t", snap, []any{int64(1), "b"}, EditOptions{})
	assert.Equal(t, lberrors.CodeStaleSnapshot, lberrors.GetCode(err))
	assert.Equal(t, lberrors.ErrCategoryPrecondition, lberrors.GetCategory(err))

	forged := types.RowSnapshot{
		Columns: []types.ColumnMetadata{{Name: "id"}, {Name: "v", IsPrimaryKey: true}, {Name: "note"}},
		Values:  []any{nil, "a", nil},
	}
	_, err = s.Delete(ctx, "t", forged, EditOptions{})
	assert.Equal(t, lberrors.CodeStaleSnapshot, lberrors.GetCode(err))

	data, err = s.Rows(ctx, "t", sqlgen.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), data.Total)
	snap, err = data.Snapshot(1)
	require.NoError(t, err)
	n, err := s.Delete(ctx, "t", snap, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSession_DateColumnsRoundTrip(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE ev (d DATE, ts DATETIME, done BOOLEAN);
		INSERT INTO ev VALUES ('2024-01-02', '2024-01-02 10:00', 2)`)

	data, err := s.Rows(ctx, "ev", sqlgen.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []any{"2024-01-02", "2024-01-02 10:00", int64(2)}, data.Rows[0])

	// the full-row match binds the stored text, so it finds the row
	snap, err := data.Snapshot(0)
	require.NoError(t, err)
	n, err := s.Update(ctx, "ev", snap, []any{"2024-02-03", "2024-02-03 11:00", int64(0)}, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := s.Execute(ctx, "SELECT CAST(d AS TEXT), done + 0 FROM ev")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"2024-02-03", int64(0)}}, res.Rows)
}

func TestSession_CountMismatch(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT); INSERT INTO t VALUES (1, 'a')")

	data, err := s.Rows(ctx, "t", sqlgen.SelectOptions{})
	require.NoError(t, err)
	snap, _ := data.Snapshot(0)

	_, err = s.Update(ctx, "t", snap, []any{1}, EditOptions{})
	assert.Equal(t, lberrors.CodeCountMismatch, lberrors.GetCode(err))
	_, err = s.Insert(ctx, "t", []any{1, "a", "b"})
	assert.Equal(t, lberrors.CodeCountMismatch, lberrors.GetCode(err))

	_, err = s.Delete(ctx, "t", types.RowSnapshot{}, EditOptions{})
	assert.Equal(t, lberrors.CodeNoRowSelected, lberrors.GetCode(err))
}

func TestSession_ExecuteAndHistory(t *testing.T) {
	stats := observability.NewQueryStats(0, nil)
	s, _ := newSession(t, Options{HistoryLimit: 2, Stats: stats})
	ctx := context.Background()

	_, err := s.Execute(ctx, "   ")
	assert.Equal(t, lberrors.CodeEmptyQuery, lberrors.GetCode(err))
	assert.Empty(t, s.History(), "empty queries are not recorded")

	res, err := s.Execute(ctx, "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)
	assert.False(t, res.Read)

	res, err = s.Execute(ctx, "INSERT INTO t VALUES (1), (2)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	res, err = s.Execute(ctx, "SELECT x FROM t ORDER BY x")
	require.NoError(t, err)
	assert.True(t, res.Read)
	assert.Equal(t, []string{"x"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}}, res.Rows)

	_, err = s.Execute(ctx, "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table: missing")

	recent := s.History()
	require.Len(t, recent, 2)
	assert.False(t, recent[0].Success)
	assert.Contains(t, recent[0].Error, "no such table")
	assert.Equal(t, 2, recent[1].RowsReturned)

	e, err := s.HistoryEntry(res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "SELECT x FROM t ORDER BY x", e.SQL)
	_, err = s.HistoryEntry("nope")
	assert.Error(t, err)

	var selects int64
	for _, k := range stats.Kinds() {
		if k.Kind == "SELECT" {
			selects = k.Count
			assert.Equal(t, int64(1), k.Errors)
		}
	}
	assert.Equal(t, int64(2), selects)
}

func TestSession_ExecuteReturning(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")

	res, err := s.Execute(ctx, "INSERT INTO t (name) VALUES ('a'), ('b') RETURNING id, name")
	require.NoError(t, err)
	assert.True(t, res.Read)
	assert.Equal(t, "insert", res.Kind)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), "a"}, {int64(2), "b"}}, res.Rows)

	res, err = s.Execute(ctx, "DELETE FROM t WHERE id = 2 RETURNING name")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"b"}}, res.Rows)

	e, err := s.HistoryEntry(res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.RowsReturned)

	res, err = s.Execute(ctx, "SELECT COUNT(*) FROM t")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1)}}, res.Rows)
}

func TestSession_SaveAndLoadQuery(t *testing.T) {
	s, _ := newSession(t, Options{Artifacts: storage.NewArtifacts(storage.LocalOpener(t.TempDir()))})
	ctx := context.Background()

	for _, loc := range []string{filepath.Join(t.TempDir(), "q.sql"), "s3://queries/saved/q.sql.sz"} {
		require.NoError(t, s.SaveQuery(ctx, loc, "SELECT 1;\n"))
		got, err := s.LoadQuery(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1;\n", got)
	}
}

func TestSession_TableLifecycle(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()

	specs := []types.ColumnSpec{
		{Name: "sku", Type: types.TypeText, PrimaryKey: true},
		{Name: "qty", Type: types.TypeInteger, NotNull: true, Default: "0"},
	}
	require.NoError(t, s.CreateTable(ctx, "stock", specs, false))
	require.NoError(t, s.CreateTable(ctx, "stock", specs, true))
	err := s.CreateTable(ctx, "stock", specs, false)
	assert.Equal(t, lberrors.ErrCategoryEngine, lberrors.GetCategory(err))

	_, err = s.Insert(ctx, "stock", []any{"a-1", 3})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "stock", []any{"a-2", 4})
	require.NoError(t, err)

	info, err := s.TableInfo(ctx, "stock")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.RowCount)
	assert.True(t, info.Columns[0].IsPrimaryKey)

	n, err := s.TruncateTable(ctx, "stock")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.DropTable(ctx, "stock"))
	_, err = s.TableInfo(ctx, "stock")
	assert.Equal(t, lberrors.CodeObjectNotFound, lberrors.GetCode(err))
}

func TestSession_SchemaPassthroughs(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE a (id INTEGER PRIMARY KEY, v TEXT);
		CREATE INDEX a_v ON a(v);
		CREATE VIEW av AS SELECT v FROM a`)

	schema, err := s.Schema(ctx)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Len(t, schema.Indexes, 1)
	assert.Len(t, schema.Views, 1)

	ddl, err := s.DDL(ctx, "av")
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE VIEW av")

	info, err := s.DatabaseInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Tables)

	report, err := s.IntegrityCheck(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK)
	require.NoError(t, s.Vacuum(ctx))
}

func TestSession_SerializesConcurrentCallers(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE c (n INTEGER)")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := s.Insert(ctx, "c", []any{i*10 + j})
				assert.NoError(t, err)
				_, err = s.Rows(ctx, "c", sqlgen.SelectOptions{Limit: 5})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	info, err := s.TableInfo(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(80), info.RowCount)
}

func TestTableNameFor(t *testing.T) {
	assert.Equal(t, "sales_2024", TableNameFor("/data/sales 2024.csv"))
	assert.Equal(t, "users", TableNameFor("s3://bucket/exports/users.csv.sz"))
	assert.Equal(t, "plain", TableNameFor("plain"))
}
