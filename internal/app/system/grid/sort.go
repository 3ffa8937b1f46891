package grid

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dalemusser/paydesk/internal/domain/models"
)

// Direction is the sort direction multiplier.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// ParseDirection maps "asc"/"desc" (any case) to a Direction. Anything
// else is ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Sort is the SortState of a screen. At most one column is active.
type Sort struct {
	Column string
	Dir    Direction
}

// Active reports whether a sort column is selected.
func (s Sort) Active() bool { return s.Column != "" }

// Toggle selects column. Selecting the active column flips the direction;
// selecting another column replaces the prior one, ascending.
func (s *Sort) Toggle(column string) {
	if s.Column == column {
		s.Dir = -s.Dir
		return
	}
	s.Column = column
	s.Dir = Asc
}

// SortRecords returns a sorted copy of records.
//
// Numbers sort before non-numbers; numbers compare numerically and the
// rest as strings. Equal values keep their input order. There is no
// secondary key, so rows that tie on the sort column appear in fetch order.
func SortRecords(records []models.Record, s Sort) []models.Record {
	out := make([]models.Record, len(records))
	copy(out, records)
	if !s.Active() {
		return out
	}
	dir := s.Dir
	if dir == 0 {
		dir = Asc
	}
	slices.SortStableFunc(out, func(a, b models.Record) int {
		return int(dir) * compareValues(a[s.Column], b[s.Column])
	})
	return out
}

// compareValues is a total order over mixed columns such as reference
// numbers where some values carry letters.
func compareValues(a, b any) int {
	fa, aNum := models.Number(a)
	fb, bNum := models.Number(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(fa, fb)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(models.Stringify(a), models.Stringify(b))
}
