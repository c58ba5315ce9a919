package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
)

func (c *cli) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database as SQL, CSV or JSON",
		Long:  "Locations are local paths or s3://bucket/key URLs. A .sz suffix, or export.compress, writes snappy-compressed output.",
	}

	cmd.AddCommand(dbCommand(&cobra.Command{
		Use:   "sql LOCATION",
		Short: "Write a replayable SQL dump of the whole database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := c.sess.ExportSQL(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return c.reportWritten(loc)
		},
	}))

	var all bool
	csvCmd := &cobra.Command{
		Use:   "csv (TABLE LOCATION | --all DIR)",
		Short: "Write a table as CSV, or every table into a directory",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				written, err := c.sess.ExportAllCSV(ctxOf(cmd), args[0])
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(map[string]any{"locations": written})
				}
				c.printLines(written)
				return nil
			}
			loc, n, err := c.sess.ExportCSV(ctxOf(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"location": loc, "rows": n})
			}
			fmt.Fprintf(c.out, "wrote %d row(s) to %s\n", n, loc)
			return nil
		},
	}
	csvCmd.Flags().BoolVar(&all, "all", false, "export every table, one file each")
	cmd.AddCommand(dbCommand(csvCmd))

	cmd.AddCommand(dbCommand(&cobra.Command{
		Use:   "json [TABLE] LOCATION",
		Short: "Write a table, or the whole database, as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, location := "", args[0]
			if len(args) == 2 {
				table, location = args[0], args[1]
			}
			loc, err := c.sess.ExportJSON(ctxOf(cmd), table, location)
			if err != nil {
				return err
			}
			return c.reportWritten(loc)
		},
	}))
	return cmd
}

func (c *cli) reportWritten(location string) error {
	if c.jsonOutput() {
		return c.printJSON(map[string]any{"location": location})
	}
	fmt.Fprintf(c.out, "wrote %s\n", location)
	return nil
}

func (c *cli) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a SQL script or CSV files",
	}

	cmd.AddCommand(dbCommand(&cobra.Command{
		Use:   "sql LOCATION",
		Short: "Replay a SQL script; a failing script changes nothing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.sess.ImportSQL(ctxOf(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "imported %s\n", args[0])
			return nil
		},
	}))

	var table string
	csvCmd := &cobra.Command{
		Use:   "csv LOCATION...",
		Short: "Load CSV files, creating a table named after each file",
		Long:  "Each file goes into the table named after it, created with inferred column types when missing. --table names the target for a single file.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			if table != "" {
				if len(args) > 1 {
					return lberrors.NewUserInputError(lberrors.CodeInvalidFormat, "--table needs exactly one file")
				}
				res, err := c.sess.ImportCSV(ctx, args[0], table)
				if err != nil {
					return err
				}
				if c.jsonOutput() {
					return c.printJSON(res)
				}
				fmt.Fprintf(c.out, "imported %d row(s) into %s\n", res.Rows, res.Table)
				return nil
			}

			results, err := c.sess.ImportCSVFiles(ctx, args)
			for _, res := range results {
				if !c.jsonOutput() {
					fmt.Fprintf(c.out, "imported %d row(s) into %s\n", res.Rows, res.Table)
				}
			}
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]any{"imports": results})
			}
			return nil
		},
	}
	csvCmd.Flags().StringVar(&table, "table", "", "target table for a single file")
	cmd.AddCommand(dbCommand(csvCmd))
	return cmd
}
