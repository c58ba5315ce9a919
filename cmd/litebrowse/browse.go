package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/session"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
	"github.com/litebrowse/litebrowse/pkg/types"
)

func (c *cli) newDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new PATH",
		Short: "Create an empty database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := session.OptionsFromConfig(c.cfg, nil, c.logger)
			if err != nil {
				return err
			}
			c.sess = session.New(opts)
			if err := c.sess.Create(ctxOf(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "created %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) tablesCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := c.sess.FilterTables(ctxOf(cmd), filter)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"tables": tables})
			}
			c.printLines(tables)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only tables whose name contains this text")
	return dbCommand(cmd)
}

// pageFlags are the table load options shared by show, update and delete.
type pageFlags struct {
	opts sqlgen.SelectOptions
}

func (p *pageFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.opts.Filter, "filter", "", "only rows where some column contains this text")
	f.StringVar(&p.opts.SortColumn, "sort", "", "sort by this column")
	f.BoolVar(&p.opts.Desc, "desc", false, "sort descending")
	f.IntVar(&p.opts.Limit, "limit", 0, "rows per page (0 uses browse.page_size)")
	f.IntVar(&p.opts.Offset, "offset", 0, "rows to skip")
}

func (c *cli) showCmd() *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "show TABLE",
		Short: "Show a page of rows; the # column addresses rows for update and delete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.sess.Rows(ctxOf(cmd), args[0], page.opts)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(data)
			}
			if err := c.printGrid(types.ColumnNames(data.Columns), data.Rows, true); err != nil {
				return err
			}
			fmt.Fprintf(c.errOut, "%d of %d rows\n", len(data.Rows), data.Total)
			return nil
		},
	}
	page.register(cmd)
	return dbCommand(cmd)
}

func (c *cli) infoCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "info TABLE",
		Short: "Show a table's columns and row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := c.sess.TableInfo(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(info)
			}
			rows := make([][]any, len(info.Columns))
			for i, col := range info.Columns {
				var def any
				if col.DefaultValue != nil {
					def = *col.DefaultValue
				}
				rows[i] = []any{col.Name, col.DeclaredType, col.NotNull, col.IsPrimaryKey, def}
			}
			if err := c.printGrid([]string{"name", "type", "not_null", "primary_key", "default"}, rows, false); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d rows\n", info.RowCount)
			return nil
		},
	})
}

func (c *cli) insertCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "insert TABLE VALUE...",
		Short: `Insert a row; pass one value per column, \N for NULL and AUTO for a generated key`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.sess.Insert(ctxOf(cmd), args[0], parseValues(args[1:]))
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"rowid": id})
			}
			fmt.Fprintf(c.out, "inserted row %d\n", id)
			return nil
		},
	})
}

// snapshot loads the page described by page and returns row arg of it.
func (c *cli) snapshot(cmd *cobra.Command, table, arg string, page pageFlags) (types.RowSnapshot, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return types.RowSnapshot{}, lberrors.NewUserInputError(lberrors.CodeInvalidFormat,
			fmt.Sprintf("row %q must be a number from the # column of show", arg))
	}
	data, err := c.sess.Rows(ctxOf(cmd), table, page.opts)
	if err != nil {
		return types.RowSnapshot{}, err
	}
	return data.Snapshot(i)
}

func (c *cli) editOptions() session.EditOptions {
	return session.EditOptions{AllowMultiple: c.cfg.Browse.AllowMultiple}
}

func (c *cli) updateCmd() *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "update TABLE ROW VALUE...",
		Short: "Replace every column of the row shown at position ROW",
		Long:  "update loads the same page show would (use the same --filter, --sort and paging flags) and replaces row ROW with the given values.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd, args[0], args[1], page)
			if err != nil {
				return err
			}
			n, err := c.sess.Update(ctxOf(cmd), args[0], snap, parseValues(args[2:]), c.editOptions())
			if err != nil {
				return err
			}
			return c.reportAffected("updated", n)
		},
	}
	page.register(cmd)
	return dbCommand(cmd)
}

func (c *cli) deleteCmd() *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "delete TABLE ROW",
		Short: "Delete the row shown at position ROW",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd, args[0], args[1], page)
			if err != nil {
				return err
			}
			n, err := c.sess.Delete(ctxOf(cmd), args[0], snap, c.editOptions())
			if err != nil {
				return err
			}
			return c.reportAffected("deleted", n)
		},
	}
	page.register(cmd)
	return dbCommand(cmd)
}

func (c *cli) reportAffected(verb string, n int64) error {
	if c.jsonOutput() {
		return c.printJSON(map[string]any{"rows_affected": n})
	}
	fmt.Fprintf(c.out, "%s %d row(s)\n", verb, n)
	return nil
}

func (c *cli) createTableCmd() *cobra.Command {
	var ifNotExists bool
	cmd := &cobra.Command{
		Use:   "create-table NAME COLUMN...",
		Short: "Create a table; columns are name:TYPE[:pk][:notnull][:unique][:default=VALUE]",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]types.ColumnSpec, 0, len(args)-1)
			for _, a := range args[1:] {
				spec, err := parseColumnSpec(a)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}
			if err := c.sess.CreateTable(ctxOf(cmd), args[0], specs, ifNotExists); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "created table %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "do nothing when the table exists")
	return dbCommand(cmd)
}

func (c *cli) dropCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "drop TABLE",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.sess.DropTable(ctxOf(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "dropped table %s\n", args[0])
			return nil
		},
	})
}

func (c *cli) truncateCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "truncate TABLE",
		Short: "Delete every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.sess.TruncateTable(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return c.reportAffected("deleted", n)
		},
	})
}
