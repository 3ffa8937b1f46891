package grid

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/paydesk/internal/domain/models"
)

// Column formats.
const (
	FormatText      = "text"
	FormatMoney     = "money"
	FormatDateTime  = "datetime"
	FormatStatus    = "status"
	FormatURLDecode = "urldecode"
)

// displayLayout is how datetimes are shown in every grid.
const displayLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Cell renders the record field behind c as display text. Filtering and
// sorting always work on the raw field; only presentation goes through here.
func Cell(c models.Column, rec models.Record) string {
	raw := rec[c.Key()]
	switch c.Format {
	case FormatMoney:
		return formatMoney(raw)
	case FormatDateTime:
		return formatDateTime(raw)
	case FormatStatus:
		return formatStatus(c.Options, raw)
	case FormatURLDecode:
		return formatURLDecoded(raw)
	default:
		return models.Stringify(raw)
	}
}

// Cells renders one row in column order.
func Cells(cols []models.Column, rec models.Record) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Cell(c, rec)
	}
	return out
}

func formatMoney(v any) string {
	f, ok := models.Number(v)
	if !ok {
		return models.Stringify(v)
	}
	neg := f < 0
	if neg {
		f = -f
	}
	s := strconv.FormatFloat(f, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func formatDateTime(v any) string {
	s := models.Stringify(v)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(displayLayout)
		}
	}
	// Unix seconds
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0).UTC().Format(displayLayout)
	}
	return s
}

func formatStatus(opts []models.Option, v any) string {
	s := models.Stringify(v)
	for _, o := range opts {
		if o.Value == s {
			return o.Label
		}
	}
	return s
}

// formatURLDecoded undoes the form encoding some endpoints leave on free
// text fields (SMS bodies, remarks). Malformed input is shown as-is.
func formatURLDecoded(v any) string {
	s := models.Stringify(v)
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}
