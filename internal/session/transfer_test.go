package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litebrowse/litebrowse/internal/csvimport"
	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/storage"
	"github.com/litebrowse/litebrowse/pkg/types"
)

func TestSession_ExportImportSQL(t *testing.T) {
	buckets := t.TempDir()
	artifacts := storage.NewArtifacts(storage.LocalOpener(buckets))
	src, _ := newSession(t, Options{Artifacts: artifacts, Compress: true})
	ctx := context.Background()
	mustExec(t, src, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
		INSERT INTO notes (body) VALUES ('first'), ('it''s second')`)

	loc, err := src.ExportSQL(ctx, "s3://backups/notes.sql")
	require.NoError(t, err)
	assert.Equal(t, "s3://backups/notes.sql.sz", loc)
	_, err = os.Stat(filepath.Join(buckets, "backups", "notes.sql.sz"))
	require.NoError(t, err)

	dst, _ := newSession(t, Options{Artifacts: artifacts})
	require.NoError(t, dst.ImportSQL(ctx, loc))
	res, err := dst.Execute(ctx, "SELECT body FROM notes ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"first"}, {"it's second"}}, res.Rows)

	// replaying again collides with the existing table and changes nothing
	err = dst.ImportSQL(ctx, loc)
	assert.Equal(t, lberrors.ErrCategoryEngine, lberrors.GetCategory(err))
	info, err := dst.TableInfo(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.RowCount)
}

func TestSession_ExportCSVAndJSON(t *testing.T) {
	s, _ := newSession(t, Options{JSONIndent: ""})
	ctx := context.Background()
	mustExec(t, s, `CREATE TABLE t (a INTEGER, b TEXT); INSERT INTO t VALUES (1, 'x'), (NULL, 'y, z')`)
	dir := t.TempDir()

	loc, n, err := s.ExportCSV(ctx, "t", filepath.Join(dir, "t.csv"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,x\n,\"y, z\"\n", string(data))

	loc, err = s.ExportJSON(ctx, "t", filepath.Join(dir, "t.json"))
	require.NoError(t, err)
	data, err = os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1,"b":"x"},{"a":null,"b":"y, z"}]`+"\n", string(data))

	loc, err = s.ExportJSON(ctx, "", filepath.Join(dir, "db.json"))
	require.NoError(t, err)
	data, err = os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, `{"t":[{"a":1,"b":"x"},{"a":null,"b":"y, z"}]}`+"\n", string(data))

	files, err := s.ExportAllCSV(ctx, filepath.Join(dir, "all"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "all", "t.csv")}, files)
}

func TestSession_ImportCSV(t *testing.T) {
	s, _ := newSession(t, Options{})
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "price list.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,price\n3,2.50\n4,1.25\n"), 0644))

	res, err := s.ImportCSV(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, "price_list", res.Table)
	assert.Equal(t, int64(2), res.Rows)
	assert.Equal(t, []types.ColumnDef{{Name: "id", Type: types.TypeInteger}, {Name: "price", Type: types.TypeReal}}, res.Columns)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("id,price\n"), 0644))
	_, err = s.ImportCSV(ctx, empty, "")
	assert.Equal(t, lberrors.CodeNoDataRows, lberrors.GetCode(err))
	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"price_list"}, tables)
}

func TestSession_ImportCSVFiles(t *testing.T) {
	buckets := t.TempDir()
	artifacts := storage.NewArtifacts(storage.LocalOpener(buckets))
	s, _ := newSession(t, Options{
		Artifacts:  artifacts,
		Inferencer: csvimport.MultiRow{Rows: 10},
	})
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "cities.csv")
	require.NoError(t, os.WriteFile(local, []byte("name,pop\nOslo,700000\nBergen,285000\n"), 0644))

	w, err := artifacts.Create(ctx, "s3://raw/2024/readings.csv.sz")
	require.NoError(t, err)
	_, err = w.Write([]byte("sensor,value\na,1\nb,2.5\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	results, err := s.ImportCSVFiles(ctx, []string{local, "s3://raw/2024/readings.csv.sz"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cities", results[0].Table)
	assert.Equal(t, "readings", results[1].Table)
	assert.Equal(t, types.TypeReal, results[1].Columns[1].Type, "multi-row inference widens to REAL")

	_, err = s.ImportCSVFiles(ctx, []string{"s3://raw/missing.csv"})
	assert.Equal(t, lberrors.CodeObjectNotFound, lberrors.GetCode(err))
}
