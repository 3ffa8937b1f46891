// internal/app/features/auditlog/types.go
package auditlog

import (
	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
)

// listResponse is the JSON body of GET /audit.
type listResponse struct {
	Items []audit.Event `json:"items"`

	// Filters echoed back
	Screen    string `json:"screen,omitempty"`
	Verb      string `json:"verb,omitempty"`
	Category  string `json:"category,omitempty"`
	EventType string `json:"event_type,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// Pagination
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
	TotalPages int          `json:"total_pages"`
	Total      int64        `json:"total"`
	Range      paging.Range `json:"range"`
}

// validCategories are the accepted values of the category filter.
var validCategories = []string{audit.CategoryAction, audit.CategoryBatch}
