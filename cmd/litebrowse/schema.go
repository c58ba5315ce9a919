package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/litebrowse/litebrowse/pkg/types"
)

func (c *cli) schemaCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "schema",
		Short: "Show tables with their columns, plus indexes, views and triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := c.sess.Schema(ctxOf(cmd))
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(schema)
			}
			for _, t := range schema.Tables {
				fmt.Fprintf(c.out, "table %s\n", t.Name)
				for _, col := range t.Columns {
					fmt.Fprintf(c.out, "  %s %s%s\n", col.Name, col.DeclaredType, columnFlags(col))
				}
			}
			for _, group := range []struct {
				kind    string
				objects []types.SchemaObject
			}{{"index", schema.Indexes}, {"view", schema.Views}, {"trigger", schema.Triggers}} {
				for _, o := range group.objects {
					fmt.Fprintf(c.out, "%s %s on %s\n", group.kind, o.Name, o.Table)
				}
			}
			return nil
		},
	})
}

func columnFlags(col types.ColumnMetadata) string {
	var s string
	if col.IsPrimaryKey {
		s += " PRIMARY KEY"
	}
	if col.NotNull {
		s += " NOT NULL"
	}
	if col.DefaultValue != nil {
		s += " DEFAULT " + *col.DefaultValue
	}
	return s
}

func (c *cli) ddlCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "ddl NAME",
		Short: "Print the stored definition of a table, index, view or trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ddl, err := c.sess.DDL(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]string{"name": args[0], "ddl": ddl})
			}
			writeString(c.out, ddl)
			return nil
		},
	})
}

func (c *cli) dbInfoCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "dbinfo",
		Short: "Summarize the database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := c.sess.DatabaseInfo(ctxOf(cmd))
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(info)
			}
			return c.printGrid([]string{"property", "value"}, [][]any{
				{"path", c.sess.Path()},
				{"tables", int64(info.Tables)},
				{"indexes", int64(info.Indexes)},
				{"views", int64(info.Views)},
				{"triggers", int64(info.Triggers)},
				{"page_size", info.PageSize},
				{"page_count", info.PageCount},
				{"size_bytes", info.SizeBytes},
				{"encoding", info.Encoding},
			}, false)
		},
	})
}

func (c *cli) checkCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "check",
		Short: "Run an integrity check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.sess.IntegrityCheck(ctxOf(cmd))
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(report)
			}
			c.printLines(report.Messages)
			if !report.OK {
				return fmt.Errorf("integrity check reported %d problem(s)", len(report.Messages))
			}
			return nil
		},
	})
}

func (c *cli) vacuumCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "vacuum",
		Short: "Rebuild the database file to reclaim space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.sess.Vacuum(ctxOf(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "vacuum complete")
			return nil
		},
	})
}

func (c *cli) dupesCmd() *cobra.Command {
	return dbCommand(&cobra.Command{
		Use:   "dupes TABLE",
		Short: "Report groups of identical rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := c.sess.DuplicateRows(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"groups": groups})
			}
			if len(groups) == 0 {
				fmt.Fprintln(c.out, "no duplicate rows")
				return nil
			}
			rows := make([][]any, len(groups))
			for i, g := range groups {
				row := append([]any{int64(g.Count)}, g.Values...)
				rows[i] = row
			}
			info, err := c.sess.TableInfo(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return c.printGrid(append([]string{"count"}, types.ColumnNames(info.Columns)...), rows, false)
		},
	})
}
