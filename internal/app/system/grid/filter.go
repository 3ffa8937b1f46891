package grid

import (
	"strings"

	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// Filters is the FilterState of a screen: column key -> current filter text.
// A missing key and an empty value both mean "no filter on this column".
type Filters map[string]string

// Set stores value for key and reports whether the state changed.
// Values are trimmed; setting "" removes the entry.
func (f Filters) Set(key, value string) bool {
	value = strings.TrimSpace(value)
	old := f[key]
	if value == "" {
		delete(f, key)
	} else {
		f[key] = value
	}
	return old != value
}

// Clear resets every column filter to empty.
func (f Filters) Clear() {
	for k := range f {
		delete(f, k)
	}
}

// Active reports whether any column filter is non-empty.
func (f Filters) Active() bool {
	for _, v := range f {
		if v != "" {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Filter returns the records matching every active column filter, in
// their original order. The input slice is never modified.
//
// Each filterable column contributes a case-insensitive test against the
// stringified raw field: substring containment for free-text columns and
// equality for enum columns (columns with Options). Filters on unknown or
// non-filterable columns are ignored.
func Filter(records []models.Record, cols []models.Column, f Filters) []models.Record {
	preds := compile(cols, f)
	if len(preds) == 0 {
		out := make([]models.Record, len(records))
		copy(out, records)
		return out
	}

	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if matchAll(rec, preds) {
			out = append(out, rec)
		}
	}
	return out
}

type predicate struct {
	field  string
	needle string
	exact  bool
}

func compile(cols []models.Column, f Filters) []predicate {
	var preds []predicate
	for _, c := range cols {
		if !c.Filterable {
			continue
		}
		v := f[c.Key()]
		if v == "" {
			continue
		}
		preds = append(preds, predicate{
			field:  c.Key(),
			needle: text.Fold(v),
			exact:  len(c.Options) > 0,
		})
	}
	return preds
}

func matchAll(rec models.Record, preds []predicate) bool {
	for _, p := range preds {
		hay := text.Fold(rec.String(p.field))
		if p.exact {
			if hay != p.needle {
				return false
			}
			continue
		}
		if !strings.Contains(hay, p.needle) {
			return false
		}
	}
	return true
}
