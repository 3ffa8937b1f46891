// internal/app/features/screens/types.go
package screens

import (
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/domain/models"
)

// catalogEntry describes one screen to a client. Endpoint scripts stay
// server-side.
type catalogEntry struct {
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	KeyFields []string        `json:"key_fields"`
	PerPage   int             `json:"per_page,omitempty"`
	Columns   []models.Column `json:"columns"`
	Actions   []models.Action `json:"actions"`
}

func newCatalogEntry(s *models.Screen) catalogEntry {
	actions := s.Actions
	if actions == nil {
		actions = []models.Action{}
	}
	return catalogEntry{
		Name:      s.Name,
		Title:     s.Title,
		KeyFields: s.KeyFields,
		PerPage:   s.PerPage,
		Columns:   s.Columns,
		Actions:   actions,
	}
}

// row is one visible record: its key, the formatted cells in column
// order, and the raw fields.
type row struct {
	Key   string        `json:"key"`
	Cells []string      `json:"cells"`
	Data  models.Record `json:"data"`
}

type sortState struct {
	Column string `json:"column,omitempty"`
	Dir    string `json:"dir,omitempty"`
}

// viewResponse is the JSON body of a screen view.
type viewResponse struct {
	Screen     string            `json:"screen"`
	Title      string            `json:"title"`
	Busy       bool              `json:"busy"`
	Loaded     bool              `json:"loaded"`
	FetchedAt  *time.Time        `json:"fetched_at,omitempty"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
	Total      int               `json:"total"`
	Filtered   int               `json:"filtered"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Rows       []row             `json:"rows"`
	Filters    map[string]string `json:"filters"`
	Sort       sortState         `json:"sort"`
	Params     map[string]string `json:"params,omitempty"`
	Notice     *models.Notice    `json:"notice,omitempty"`
}

func newViewResponse(snap console.Snapshot) viewResponse {
	v := snap.View
	rows := make([]row, len(v.Rows))
	for i, rec := range v.Rows {
		rows[i] = row{
			Key:   rec.Key(snap.Screen.KeyFields),
			Cells: grid.Cells(snap.Screen.Columns, rec),
			Data:  rec,
		}
	}

	resp := viewResponse{
		Screen:     snap.Screen.Name,
		Title:      snap.Screen.Title,
		Busy:       snap.Busy,
		Loaded:     snap.Loaded,
		Page:       v.Page,
		PerPage:    v.PerPage,
		TotalPages: v.TotalPages,
		Total:      v.Total,
		Filtered:   v.Filtered,
		Start:      v.Range.Start,
		End:        v.Range.End,
		Rows:       rows,
		Filters:    snap.Filters,
		Params:     snap.Params,
		Notice:     snap.Notice,
	}
	if resp.Filters == nil {
		resp.Filters = map[string]string{}
	}
	if snap.Sort.Active() {
		resp.Sort = sortState{Column: snap.Sort.Column, Dir: snap.Sort.Dir.String()}
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		resp.FetchedAt = &t
	}
	return resp
}

// actionResponse is the JSON body of a successful row action.
type actionResponse struct {
	Status    string        `json:"status"`
	RequestID string        `json:"request_id"`
	Notice    models.Notice `json:"notice"`
	Stale     bool          `json:"stale,omitempty"` // the refetch after the action failed
	View      viewResponse  `json:"view"`
}

// batchResponse is the JSON body of a batch run.
type batchResponse struct {
	Status string               `json:"status"`
	Report dispatch.BatchReport `json:"report"`
	Stale  bool                 `json:"stale,omitempty"`
	View   viewResponse         `json:"view"`
}
