// Package catalog reads schema and database metadata through the engine's
// own catalog tables and pragmas.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/ident"
	"github.com/litebrowse/litebrowse/internal/rowid"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// TableInfo is a table's column metadata and current row count.
type TableInfo struct {
	Name     string                 `json:"name"`
	Columns  []types.ColumnMetadata `json:"columns"`
	RowCount int64                  `json:"row_count"`
}

// DatabaseInfo summarizes a database file.
type DatabaseInfo struct {
	Tables    int    `json:"tables"`
	Indexes   int    `json:"indexes"`
	Views     int    `json:"views"`
	Triggers  int    `json:"triggers"`
	PageSize  int64  `json:"page_size"`
	PageCount int64  `json:"page_count"`
	SizeBytes int64  `json:"size_bytes"`
	Encoding  string `json:"encoding"`
}

// IntegrityReport holds the lines returned by PRAGMA integrity_check.
type IntegrityReport struct {
	OK       bool     `json:"ok"`
	Messages []string `json:"messages"`
}

// Catalog answers metadata questions for one database connection.
type Catalog struct {
	q Querier
}

// New creates a catalog over q.
func New(q Querier) *Catalog {
	return &Catalog{q: q}
}

// ListTables returns every table name in sqlite_master order by name.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	return c.names(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
}

// FilterTables returns the tables whose name contains term, ignoring case.
// An empty term returns every table.
func (c *Catalog) FilterTables(ctx context.Context, term string) ([]string, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return tables, nil
	}
	out := tables[:0]
	for _, t := range tables {
		if strings.Contains(strings.ToLower(t), term) {
			out = append(out, t)
		}
	}
	return out, nil
}

// TableColumns returns the column metadata of table from PRAGMA table_info.
func (c *Catalog) TableColumns(ctx context.Context, table string) ([]types.ColumnMetadata, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to read table columns", err)
	}
	defer rows.Close()

	var columns []types.ColumnMetadata
	for rows.Next() {
		var (
			col     types.ColumnMetadata
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.CID, &col.Name, &col.DeclaredType, &notNull, &dflt, &pk); err != nil {
			return nil, lberrors.NewEngineError("failed to scan table column", err)
		}
		col.NotNull = notNull != 0
		if dflt.Valid {
			v := dflt.String
			col.DefaultValue = &v
		}
		col.IsPrimaryKey = pk > 0
		col.PKOrdinal = pk
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, lberrors.NewEngineError("failed to read table columns", err)
	}
	if len(columns) == 0 {
		return nil, lberrors.New(lberrors.ErrCategoryEngine, lberrors.CodeObjectNotFound,
			fmt.Sprintf("no such table: %s", table))
	}
	return columns, nil
}

// ListIndexes returns user-defined indexes. Automatic sqlite_ indexes are skipped.
func (c *Catalog) ListIndexes(ctx context.Context) ([]types.SchemaObject, error) {
	return c.objects(ctx, "index")
}

// ListViews returns every view.
func (c *Catalog) ListViews(ctx context.Context) ([]types.SchemaObject, error) {
	return c.objects(ctx, "view")
}

// ListTriggers returns every trigger.
func (c *Catalog) ListTriggers(ctx context.Context) ([]types.SchemaObject, error) {
	return c.objects(ctx, "trigger")
}

// DDL returns the stored CREATE statement of the named object.
func (c *Catalog) DDL(ctx context.Context, name string) (string, error) {
	var ddl sql.NullString
	err := c.q.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE name = ?", name).Scan(&ddl)
	if err != nil && err != sql.ErrNoRows {
		return "", lberrors.NewEngineError("failed to read DDL", err)
	}
	if !ddl.Valid || ddl.String == "" {
		return "", lberrors.New(lberrors.ErrCategoryEngine, lberrors.CodeObjectNotFound,
			fmt.Sprintf("no DDL found for %s", name))
	}
	return ddl.String, nil
}

// RowCount counts the rows of table.
func (c *Catalog) RowCount(ctx context.Context, table string) (int64, error) {
	stmt, err := sqlgen.BuildCount(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := c.q.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, lberrors.NewEngineError("failed to count rows", err)
	}
	return n, nil
}

// TableInfo returns the columns and row count of table.
func (c *Catalog) TableInfo(ctx context.Context, table string) (*TableInfo, error) {
	columns, err := c.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	n, err := c.RowCount(ctx, table)
	if err != nil {
		return nil, err
	}
	return &TableInfo{Name: table, Columns: columns, RowCount: n}, nil
}

// Schema returns the full schema tree.
func (c *Catalog) Schema(ctx context.Context) (*types.Schema, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := &types.Schema{Tables: make([]types.TableSchema, 0, len(tables))}
	for _, name := range tables {
		columns, err := c.TableColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		ddl, err := c.DDL(ctx, name)
		if err != nil && lberrors.GetCode(err) != lberrors.CodeObjectNotFound {
			return nil, err
		}
		schema.Tables = append(schema.Tables, types.TableSchema{Name: name, SQL: ddl, Columns: columns})
	}

	if schema.Indexes, err = c.ListIndexes(ctx); err != nil {
		return nil, err
	}
	if schema.Views, err = c.ListViews(ctx); err != nil {
		return nil, err
	}
	if schema.Triggers, err = c.ListTriggers(ctx); err != nil {
		return nil, err
	}
	return schema, nil
}

// DatabaseInfo reports object counts, page geometry and text encoding.
func (c *Catalog) DatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	info := &DatabaseInfo{}

	rows, err := c.q.QueryContext(ctx, "SELECT type, COUNT(*) FROM sqlite_master GROUP BY type")
	if err != nil {
		return nil, lberrors.NewEngineError("failed to count schema objects", err)
	}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return nil, lberrors.NewEngineError("failed to count schema objects", err)
		}
		switch kind {
		case "table":
			info.Tables = n
		case "index":
			info.Indexes = n
		case "view":
			info.Views = n
		case "trigger":
			info.Triggers = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, lberrors.NewEngineError("failed to count schema objects", err)
	}

	if err := c.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&info.PageSize); err != nil {
		return nil, lberrors.NewEngineError("failed to read page size", err)
	}
	if err := c.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&info.PageCount); err != nil {
		return nil, lberrors.NewEngineError("failed to read page count", err)
	}
	if err := c.q.QueryRowContext(ctx, "PRAGMA encoding").Scan(&info.Encoding); err != nil {
		return nil, lberrors.NewEngineError("failed to read encoding", err)
	}
	info.SizeBytes = info.PageSize * info.PageCount
	return info, nil
}

// IntegrityCheck runs PRAGMA integrity_check.
func (c *Catalog) IntegrityCheck(ctx context.Context) (*IntegrityReport, error) {
	msgs, err := c.names(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		OK:       len(msgs) == 1 && msgs[0] == "ok",
		Messages: msgs,
	}, nil
}

// Vacuum rebuilds the database file.
func (c *Catalog) Vacuum(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "VACUUM"); err != nil {
		return lberrors.NewEngineError("vacuum failed", err)
	}
	return nil
}

// DuplicateRows returns groups of identical rows in table. Rows in a table
// with a primary key can never collide, so only key-less tables are worth
// asking about.
func (c *Catalog) DuplicateRows(ctx context.Context, table string) ([]rowid.DuplicateGroup, error) {
	columns, err := c.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	stmt, err := sqlgen.BuildSelect(table, sqlgen.SelectOptions{Columns: columns})
	if err != nil {
		return nil, err
	}
	rows, err := c.q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to scan table", err)
	}

	d := rowid.NewDeduper()
	err = EachRow(rows, func(_ []string, values []any) error {
		d.Add(values)
		return nil
	})
	if err != nil {
		return nil, lberrors.NewEngineError("failed to scan table", err)
	}
	return d.Duplicates(), nil
}

// ScanStored opens a scan over every row of table that reads values as
// stored, returning the columns it selects. Unlike SELECT *, generated
// columns are left out, so each row lines up with a plain INSERT.
func (c *Catalog) ScanStored(ctx context.Context, table string) ([]types.ColumnMetadata, *sql.Rows, error) {
	columns, err := c.TableColumns(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.q.QueryContext(ctx, "SELECT "+sqlgen.StoredColumns(columns)+" FROM "+ident.QuoteAny(table))
	if err != nil {
		return nil, nil, lberrors.NewEngineError("failed to read table "+table, err)
	}
	return columns, rows, nil
}

// IsWithoutRowID reports whether table was declared WITHOUT ROWID and so
// cannot be addressed by rowid.
func (c *Catalog) IsWithoutRowID(ctx context.Context, table string) (bool, error) {
	ddl, err := c.DDL(ctx, table)
	if err != nil {
		return false, err
	}
	flat := strings.Join(strings.Fields(strings.ToUpper(ddl)), " ")
	return strings.HasSuffix(strings.TrimRight(flat, "; "), "WITHOUT ROWID"), nil
}

func (c *Catalog) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, lberrors.NewEngineError("catalog query failed", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, lberrors.NewEngineError("catalog query failed", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, lberrors.NewEngineError("catalog query failed", err)
	}
	return out, nil
}

func (c *Catalog) objects(ctx context.Context, kind string) ([]types.SchemaObject, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT name, tbl_name, sql FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%' ORDER BY name", kind)
	if err != nil {
		return nil, lberrors.NewEngineError("failed to list "+kind+"s", err)
	}
	defer rows.Close()

	out := []types.SchemaObject{}
	for rows.Next() {
		var (
			obj types.SchemaObject
			ddl sql.NullString
		)
		if err := rows.Scan(&obj.Name, &obj.Table, &ddl); err != nil {
			return nil, lberrors.NewEngineError("failed to list "+kind+"s", err)
		}
		obj.Type = kind
		obj.SQL = ddl.String
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, lberrors.NewEngineError("failed to list "+kind+"s", err)
	}
	return out, nil
}
