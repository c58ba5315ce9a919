// Package export writes databases and tables out as SQL dumps, CSV and JSON,
// and replays SQL scripts back in.
package export

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/litebrowse/litebrowse/internal/ident"
)

// SQLLiteral renders v as an SQL literal that reads back with the same
// storage class.
func SQLLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		switch {
		case math.IsNaN(x):
			return "NULL"
		case math.IsInf(x, 1):
			return "1e999"
		case math.IsInf(x, -1):
			return "-1e999"
		}
		return formatReal(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return ident.QuoteLiteral(x)
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case time.Time:
		return ident.QuoteLiteral(x.Format(sqlite3.SQLiteTimestampFormats[0]))
	}
	return ident.QuoteLiteral(fmt.Sprint(v))
}

// CellText renders v for a CSV cell: NULL is empty, BLOBs are their bytes.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		switch {
		case math.IsNaN(x):
			return "nan"
		case math.IsInf(x, 1):
			return "inf"
		case math.IsInf(x, -1):
			return "-inf"
		}
		return formatReal(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(sqlite3.SQLiteTimestampFormats[0])
	}
	return fmt.Sprint(v)
}

// formatReal keeps a decimal point on whole numbers so REAL stays REAL.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
