package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/sqlgen"
)

func (c *cli) queryCmd() *cobra.Command {
	var from, save string
	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a SQL statement",
		Long:  "query runs SQL exactly as written. Reads print a grid; other statements report the rows affected. --file loads the statement from a path or s3:// URL and --save stores it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			var text string
			switch {
			case len(args) == 1 && from != "":
				return lberrors.NewUserInputError(lberrors.CodeInvalidFormat, "give either SQL or --file, not both")
			case len(args) == 1:
				text = args[0]
			case from != "":
				var err error
				if text, err = c.sess.LoadQuery(ctx, from); err != nil {
					return err
				}
			}

			res, err := c.sess.Execute(ctx, text)
			if err != nil {
				return err
			}
			if save != "" {
				if err := c.sess.SaveQuery(ctx, save, text); err != nil {
					return err
				}
			}

			if c.jsonOutput() {
				return c.printJSON(res)
			}
			if res.Read {
				if err := c.printGrid(res.Columns, res.Rows, false); err != nil {
					return err
				}
				fmt.Fprintf(c.errOut, "%d row(s) in %s\n", len(res.Rows), res.Duration.Round(time.Microsecond))
				return nil
			}
			fmt.Fprintf(c.out, "%s: %d row(s) affected in %s\n", res.Kind, res.RowsAffected, res.Duration.Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "file", "", "read the statement from this location")
	cmd.Flags().StringVar(&save, "save", "", "save the statement to this location after it runs")
	return dbCommand(cmd)
}

func (c *cli) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates [NAME]",
		Short: "List starter statements, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				t, ok := sqlgen.LookupTemplate(args[0])
				if !ok {
					return lberrors.NewUserInputError(lberrors.CodeObjectNotFound, "no template named "+args[0])
				}
				writeString(c.out, t.SQL)
				return nil
			}
			if c.jsonOutput() {
				return c.printJSON(sqlgen.Templates)
			}
			for _, t := range sqlgen.Templates {
				fmt.Fprintf(c.out, "%-14s %s\n", t.Name, strings.SplitN(t.SQL, "\n", 2)[0])
			}
			return nil
		},
	}
}
