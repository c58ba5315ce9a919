package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	lberrors "github.com/litebrowse/litebrowse/internal/errors"
	"github.com/litebrowse/litebrowse/internal/export"
	"github.com/litebrowse/litebrowse/pkg/types"
)

// nullMarker stands for NULL in printed grids and in value arguments.
const nullMarker = `\N`

func (c *cli) jsonOutput() bool {
	return c.output == "json"
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printGrid prints rows under a header. With index set, each row is
// prefixed by its position so it can be passed to update and delete.
func (c *cli) printGrid(columns []string, rows [][]any, index bool) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	header := columns
	if index {
		header = append([]string{"#"}, columns...)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, row := range rows {
		cells := make([]string, 0, len(row)+1)
		if index {
			cells = append(cells, strconv.Itoa(i))
		}
		for _, v := range row {
			cells = append(cells, displayCell(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (c *cli) printLines(lines []string) {
	for _, l := range lines {
		fmt.Fprintln(c.out, l)
	}
}

// displayCell renders one value for the terminal.
func displayCell(v any) string {
	switch x := v.(type) {
	case nil:
		return nullMarker
	case []byte:
		return export.SQLLiteral(x)
	default:
		s := export.CellText(v)
		return strings.NewReplacer("\n", `\n`, "\t", `\t`).Replace(s)
	}
}

// parseValues turns value arguments into statement values: \N is NULL,
// anything else is passed as text and converted by column affinity.
func parseValues(args []string) []any {
	values := make([]any, len(args))
	for i, a := range args {
		if a == nullMarker {
			values[i] = nil
			continue
		}
		values[i] = a
	}
	return values
}

// parseColumnSpec parses name:TYPE[:pk][:notnull][:unique][:default=VALUE].
func parseColumnSpec(s string) (types.ColumnSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || parts[0] == "" {
		return types.ColumnSpec{}, lberrors.NewValidationError(lberrors.CodeInvalidColumnDef,
			fmt.Sprintf("column %q must look like name:TYPE[:pk][:notnull][:unique][:default=VALUE]", s))
	}
	spec := types.ColumnSpec{Name: parts[0], Type: types.ColumnType(strings.ToUpper(parts[1]))}
	for _, opt := range parts[2:] {
		switch {
		case strings.EqualFold(opt, "pk"):
			spec.PrimaryKey = true
		case strings.EqualFold(opt, "notnull"):
			spec.NotNull = true
		case strings.EqualFold(opt, "unique"):
			spec.Unique = true
		case strings.HasPrefix(strings.ToLower(opt), "default="):
			spec.Default = opt[len("default="):]
		default:
			return types.ColumnSpec{}, lberrors.NewValidationError(lberrors.CodeInvalidColumnDef,
				fmt.Sprintf("unknown column option %q in %q", opt, s))
		}
	}
	return spec, nil
}

func writeString(w io.Writer, s string) {
	io.WriteString(w, s)
	if !strings.HasSuffix(s, "\n") {
		io.WriteString(w, "\n")
	}
}
