// internal/app/system/csvutil/export.go
package csvutil

import (
	"encoding/csv"
	"io"
	"strings"
)

// WriteTable writes a header row followed by rows. Cells that a
// spreadsheet would evaluate as a formula are prefixed with a quote.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, 0, len(header))
	for _, row := range rows {
		rec = rec[:0]
		for _, cell := range row {
			rec = append(rec, EscapeFormula(cell))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EscapeFormula neutralizes cells starting with =, +, -, @, tab or CR.
// Plain negative numbers are left alone.
func EscapeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '@', '\t', '\r':
		return "'" + s
	case '-':
		if isNumber(s[1:]) {
			return s
		}
		return "'" + s
	}
	return s
}

func isNumber(s string) bool {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return false
	}
	dot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
