// Package grid implements the client-side table pipeline every back-office
// screen shares: filter the fetched records, sort them, and slice a page.
//
// The pipeline is pure. Given the same records and the same state it always
// produces the same View, and it never mutates the input slice.
//
//	records -> Filter -> SortRecords -> page slice -> View
package grid

import (
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/domain/models"
)

// View is one rendered page of a screen.
type View struct {
	Rows       []models.Record
	Total      int // records fetched
	Filtered   int // records passing the filter
	Page       int
	PerPage    int
	TotalPages int
	Range      paging.Range
}

// Apply runs the whole pipeline and returns the rendered view together
// with the page state clamped against the filtered count. Callers should
// store the returned state so the visible page always stays in range.
func Apply(records []models.Record, cols []models.Column, f Filters, s Sort, p paging.State) (View, paging.State) {
	filtered := Filter(records, cols, f)
	sorted := SortRecords(filtered, s)
	p = p.Clamp(len(sorted))
	rows := paging.Slice(sorted, p)

	return View{
		Rows:       rows,
		Total:      len(records),
		Filtered:   len(sorted),
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: paging.TotalPages(len(sorted), p.PerPage),
		Range:      paging.ComputeRange(p, len(rows), len(sorted)),
	}, p
}

// Ordered returns the filtered and sorted records without paging. Used by
// exports, which always cover every page.
func Ordered(records []models.Record, cols []models.Column, f Filters, s Sort) []models.Record {
	return SortRecords(Filter(records, cols, f), s)
}
