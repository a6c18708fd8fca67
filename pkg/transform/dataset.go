// Package transform converts the remote store's CSV exports into the
// workbooks and reshaped CSVs the destination expects.
//
// The exports are semicolon delimited, ISO-8859-1 encoded and use the
// comma as decimal separator; workbooks and standard-form CSVs use the
// dot. Values travel through Dataset as string, int64 or float64.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 📦 Dataset is an ordered tabular snapshot of one CSV file
type Dataset struct {
	Columns []string
	Rows    []map[string]any
}

// HasColumn reports whether the dataset carries the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

var (
	intRe   = regexp.MustCompile(`^-?\d+$`)
	floatRe = regexp.MustCompile(`^-?\d+,\d+$`)
)

// decodeScalar turns a CSV cell into a typed value. Integers and
// comma-decimal numbers become int64 and float64; everything else stays a
// string, whitespace trimmed.
func decodeScalar(cell string) any {
	v := strings.TrimSpace(cell)
	switch {
	case intRe.MatchString(v):
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		return v
	case floatRe.MatchString(v):
		if f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64); err == nil {
			return f
		}
		return v
	default:
		return v
	}
}

// encodeScalar renders a typed value in standard form for CSV output.
func encodeScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
