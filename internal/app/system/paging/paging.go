// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PerPageOptions are the page sizes an operator can pick from.
var PerPageOptions = []int{10, 25, 50, 100}

// DefaultPerPage is the page size a fresh console starts with.
const DefaultPerPage = 10

// ValidPerPage reports whether n is one of PerPageOptions.
func ValidPerPage(n int) bool {
	return slices.Contains(PerPageOptions, n)
}

// State is the PageState of a screen: which page is visible and how many
// rows a page holds. Page is 1-based.
type State struct {
	Page    int
	PerPage int
}

// New returns page 1 at the given size, falling back to DefaultPerPage
// when perPage is not an allowed option.
func New(perPage int) State {
	if !ValidPerPage(perPage) {
		perPage = DefaultPerPage
	}
	return State{Page: 1, PerPage: perPage}
}

// TotalPages returns ceil(count/perPage). Zero records means zero pages.
func TotalPages(count, perPage int) int {
	if perPage <= 0 || count <= 0 {
		return 0
	}
	return (count + perPage - 1) / perPage
}

// Clamp pulls the page back into [1, max(1, totalPages)] for count rows.
func (s State) Clamp(count int) State {
	if !ValidPerPage(s.PerPage) {
		s.PerPage = DefaultPerPage
	}
	last := max(1, TotalPages(count, s.PerPage))
	s.Page = min(max(s.Page, 1), last)
	return s
}

// Bounds returns the half-open index window [lo, hi) of the current page
// for count rows. The state should already be clamped.
func (s State) Bounds(count int) (lo, hi int) {
	lo = (s.Page - 1) * s.PerPage
	if lo > count {
		lo = count
	}
	hi = min(lo+s.PerPage, count)
	return lo, hi
}

// Slice returns the rows of the current page.
func Slice[T any](rows []T, s State) []T {
	lo, hi := s.Bounds(len(rows))
	return rows[lo:hi]
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start    int  `json:"start"`     // 1-based start index (0 if no results)
	End      int  `json:"end"`       // 1-based end index (0 if no results)
	PrevPage int  `json:"prev_page"` // page for the previous link
	NextPage int  `json:"next_page"` // page for the next link
	HasPrev  bool `json:"has_prev"`  // a previous page exists
	HasNext  bool `json:"has_next"`  // a next page exists
}

// ComputeRange calculates display range values given the clamped state,
// the number of rows shown and the total row count across all pages.
func ComputeRange(s State, shown, count int) Range {
	total := max(1, TotalPages(count, s.PerPage))
	r := Range{
		PrevPage: max(1, s.Page-1),
		NextPage: min(total, s.Page+1),
		HasPrev:  s.Page > 1,
		HasNext:  s.Page < total,
	}
	if shown == 0 {
		return r
	}
	r.Start = (s.Page-1)*s.PerPage + 1
	r.End = r.Start + shown - 1
	return r
}

// ParsePage extracts the 1-based "page" query parameter.
// Returns 0 when absent or invalid so callers can tell "not requested"
// apart from an explicit page.
func ParsePage(r *http.Request) int {
	return parsePositive(query.Get(r, "page"))
}

// ParsePerPage extracts the "per_page" query parameter. Returns 0 when
// absent, invalid or not one of PerPageOptions.
func ParsePerPage(r *http.Request) int {
	n := parsePositive(query.Get(r, "per_page"))
	if !ValidPerPage(n) {
		return 0
	}
	return n
}

func parsePositive(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
