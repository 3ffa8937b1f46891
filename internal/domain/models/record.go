// internal/domain/models/record.go
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one row of backend-returned tabular data.
//
// The schema belongs to the PHP endpoint that produced it; the console only
// looks fields up by name. Values are whatever encoding/json produced:
// string, float64/json.Number, bool, nil, or nested maps/slices.
type Record map[string]any

// Field returns the raw value stored under name and whether it exists.
func (r Record) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// String returns the stringified value of a field. Missing and null
// fields stringify to "".
func (r Record) String(name string) string {
	return Stringify(r[name])
}

// Key joins the values of the given fields with "|".
//
// Screens like bank-account lists have no single identifier, so rows are
// keyed by a composite of fields such as bankAccNo and bankCode.
func (r Record) Key(fields []string) string {
	if len(fields) == 1 {
		return r.String(fields[0])
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = r.String(f)
	}
	return strings.Join(parts, "|")
}

// Stringify renders a JSON-decoded value the way a browser would when
// interpolating it into a table cell.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Number reports v as a float64 when it is numeric or a numeric string.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
