package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/rowid"
	"github.com/litebrowse/litebrowse/pkg/types"
)

var userColumns = []types.ColumnMetadata{
	{CID: 0, Name: "id", DeclaredType: "INTEGER", IsPrimaryKey: true, PKOrdinal: 1},
	{CID: 1, Name: "name", DeclaredType: "TEXT", NotNull: true},
	{CID: 2, Name: "email", DeclaredType: "TEXT"},
}

func TestWhereClause(t *testing.T) {
	where, args, err := WhereClause(types.Predicate{
		{Column: "a", Value: int64(1)},
		{Column: "b", Value: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, `"a" = ? AND "b" IS ?`, where)
	assert.Equal(t, []any{int64(1), nil}, args)

	where, _, err = WhereClause(types.Predicate{{Column: rowid.Column, Value: int64(9), RowID: true}})
	require.NoError(t, err)
	assert.Equal(t, "rowid = ?", where)

	// a user column named rowid is quoted so it resolves to the column
	where, _, err = WhereClause(types.Predicate{{Column: "rowid", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, `"rowid" = ?`, where)

	_, _, err = WhereClause(nil)
	assert.Error(t, err)

	_, _, err = WhereClause(types.Predicate{{Column: "a = 1 OR 1", Value: 1}})
	assert.Equal(t, lberrors.CodeInvalidIdentifier, lberrors.GetCode(err))
}

func TestBuildInsert(t *testing.T) {
	stmt, err := BuildInsert("users", userColumns, []any{types.AutoValue, "Alice", ""})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name", "email") VALUES (?, ?)`, stmt.SQL)
	assert.Equal(t, []any{"Alice", nil}, stmt.Args)

	stmt, err = BuildInsert("users", userColumns, []any{int64(5), "Bob", "b@x"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("id", "name", "email") VALUES (?, ?, ?)`, stmt.SQL)
	assert.Equal(t, []any{int64(5), "Bob", "b@x"}, stmt.Args)
}

func TestBuildInsert_AutoOnlyAppliesToPrimaryKey(t *testing.T) {
	stmt, err := BuildInsert("users", userColumns, []any{int64(1), types.AutoValue, "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), types.AutoValue, "x"}, stmt.Args)
}

func TestBuildInsert_AllSkipped(t *testing.T) {
	cols := []types.ColumnMetadata{{Name: "id", DeclaredType: "INTEGER", IsPrimaryKey: true}}
	stmt, err := BuildInsert("counters", cols, []any{types.AutoValue})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "counters" DEFAULT VALUES`, stmt.SQL)
	assert.Empty(t, stmt.Args)
}

func TestBuildInsert_Errors(t *testing.T) {
	_, err := BuildInsert("users", userColumns, []any{"x"})
	assert.Equal(t, lberrors.CodeCountMismatch, lberrors.GetCode(err))

	_, err = BuildInsert("users; drop", userColumns, []any{1, 2, 3})
	assert.Equal(t, lberrors.CodeInvalidIdentifier, lberrors.GetCode(err))
}

func TestBuildUpdate(t *testing.T) {
	pred, err := rowid.ResolvePredicate(userColumns, []any{int64(1), "Alice", "a@x"})
	require.NoError(t, err)

	stmt, err := BuildUpdate("users", userColumns, []any{int64(1), "Alicia", "a@y"}, pred)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "id" = ?, "name" = ?, "email" = ? WHERE "id" = ?`, stmt.SQL)
	assert.Equal(t, []any{int64(1), "Alicia", "a@y", int64(1)}, stmt.Args)

	_, err = BuildUpdate("users", userColumns, []any{1}, pred)
	assert.Equal(t, lberrors.CodeCountMismatch, lberrors.GetCode(err))
}

func TestBuildDelete(t *testing.T) {
	cols := []types.ColumnMetadata{{Name: "a"}, {Name: "b"}}
	pred, err := rowid.ResolvePredicate(cols, []any{"x", nil})
	require.NoError(t, err)

	stmt, err := BuildDelete("log", pred)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "log" WHERE "a" = ? AND "b" IS ?`, stmt.SQL)
	assert.Equal(t, []any{"x", nil}, stmt.Args)

	count, err := BuildMatchCount("log", pred)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "log" WHERE "a" = ? AND "b" IS ?`, count.SQL)
}

func TestStoredColumns(t *testing.T) {
	got := StoredColumns([]types.ColumnMetadata{
		{Name: "d", DeclaredType: "DATE"},
		{Name: "ts", DeclaredType: "datetime"},
		{Name: "at", DeclaredType: "TIMESTAMP"},
		{Name: "ok", DeclaredType: "BOOLEAN"},
		{Name: "note", DeclaredType: "TEXT"},
		{Name: `odd "name"`, DeclaredType: "DATETIME(3)"},
	})
	assert.Equal(t, `+"d" AS "d", +"ts" AS "ts", +"at" AS "at", +"ok" AS "ok", "note", "odd ""name"""`, got)
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name string
		opts SelectOptions
		sql  string
		args []any
	}{
		{"plain", SelectOptions{}, `SELECT * FROM "users"`, nil},
		{
			"filter",
			SelectOptions{Filter: "ali", FilterColumns: []string{"name", "email"}},
			`SELECT * FROM "users" WHERE "name" LIKE ? OR "email" LIKE ?`,
			[]any{"%ali%", "%ali%"},
		},
		{"sort desc", SelectOptions{SortColumn: "name", Desc: true}, `SELECT * FROM "users" ORDER BY "name" DESC`, nil},
		{"paged", SelectOptions{Limit: 10, Offset: 20}, `SELECT * FROM "users" LIMIT ? OFFSET ?`, []any{10, 20}},
		{"offset only", SelectOptions{Offset: 5}, `SELECT * FROM "users" LIMIT -1 OFFSET ?`, []any{5}},
		{"rowid", SelectOptions{WithRowID: true}, `SELECT rowid AS __litebrowse_rowid, * FROM "users"`, nil},
		{
			"stored columns",
			SelectOptions{WithRowID: true, Columns: []types.ColumnMetadata{
				{Name: "id", DeclaredType: "INTEGER"}, {Name: "born", DeclaredType: "Date"},
			}},
			`SELECT rowid AS __litebrowse_rowid, "id", +"born" AS "born" FROM "users"`,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := BuildSelect("users", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, stmt.SQL)
			assert.Equal(t, tt.args, stmt.Args)
		})
	}

	_, err := BuildSelect("users", SelectOptions{SortColumn: "name; DROP TABLE users"})
	assert.Error(t, err)
}

func TestBuildCreateTable(t *testing.T) {
	stmt, err := BuildCreateTable("people", []types.ColumnSpec{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true},
		{Name: "name", Type: types.TypeText, NotNull: true, Unique: true},
		{Name: ""},
		{Name: "score", Type: "real", Default: "0.5"},
		{Name: "note", Default: "it's"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"people\" (\n"+
		"  \"id\" INTEGER PRIMARY KEY,\n"+
		"  \"name\" TEXT NOT NULL UNIQUE,\n"+
		"  \"score\" REAL DEFAULT 0.5,\n"+
		"  \"note\" TEXT DEFAULT 'it''s'\n"+
		")", stmt.SQL)
}

func TestBuildCreateTable_CompositeKey(t *testing.T) {
	stmt, err := BuildCreateTable("stock", []types.ColumnSpec{
		{Name: "tenant", Type: types.TypeText, PrimaryKey: true},
		{Name: "sku", Type: types.TypeText, PrimaryKey: true},
		{Name: "qty", Type: types.TypeInteger},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"stock\" (\n"+
		"  \"tenant\" TEXT,\n"+
		"  \"sku\" TEXT,\n"+
		"  \"qty\" INTEGER,\n"+
		"  PRIMARY KEY (\"tenant\", \"sku\")\n"+
		")", stmt.SQL)
}

func TestBuildCreateTable_Errors(t *testing.T) {
	_, err := BuildCreateTable("t", []types.ColumnSpec{{Name: ""}}, false)
	assert.Equal(t, lberrors.CodeMissingArgument, lberrors.GetCode(err))

	_, err = BuildCreateTable("t", []types.ColumnSpec{{Name: "a"}, {Name: "A"}}, false)
	assert.Equal(t, lberrors.CodeInvalidColumnDef, lberrors.GetCode(err))

	_, err = BuildCreateTable("t", []types.ColumnSpec{{Name: "a", Type: "TEXT); DROP TABLE x; --"}}, false)
	assert.Equal(t, lberrors.CodeInvalidColumnDef, lberrors.GetCode(err))

	_, err = BuildCreateTable("t t", []types.ColumnSpec{{Name: "a"}}, false)
	assert.Equal(t, lberrors.CodeInvalidIdentifier, lberrors.GetCode(err))
}

func TestDefaultLiteral(t *testing.T) {
	tests := map[string]string{
		"42":                "42",
		"-1.5e3":            "-1.5e3",
		"null":              "NULL",
		"current_timestamp": "CURRENT_TIMESTAMP",
		"'quoted'":          "'quoted'",
		"plain":             "'plain'",
		"1); DROP TABLE x":  "'1); DROP TABLE x'",
		"'a' || 'b'":        "'''a'' || ''b'''",
	}
	for in, want := range tests {
		assert.Equal(t, want, DefaultLiteral(in), "input %q", in)
	}
}

func TestBuildCreateFromDefs(t *testing.T) {
	stmt, err := BuildCreateFromDefs("sales", []types.ColumnDef{
		{Name: "id", Type: types.TypeInteger},
		{Name: "price", Type: types.TypeReal},
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "sales" ("id" INTEGER, "price" REAL)`, stmt.SQL)

	ins, err := BuildBulkInsert("sales", 2)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "sales" VALUES (?, ?)`, ins.SQL)
}

func TestStatementHelpers(t *testing.T) {
	stmt, err := BuildDropTable("old", true)
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE IF EXISTS "old"`, stmt.SQL)

	stmt, err = BuildTruncate("old")
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "old"`, stmt.SQL)

	stmt, err = BuildCount("old")
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "old"`, stmt.SQL)
}
