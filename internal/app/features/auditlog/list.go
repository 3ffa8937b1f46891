// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"slices"
	"strings"
	"time"

	uierrors "github.com/dalemusser/paydesk/internal/app/features/errors"
	"github.com/dalemusser/paydesk/internal/app/store/audit"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

const defaultPageSize = 50

// ServeList handles GET /audit: recent action audit events, newest first.
//
// Query: screen, verb, category, event_type, request_id, start_date and
// end_date (YYYY-MM-DD), page, per_page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Audit(), h.Log, "audit log list")
	defer cancel()

	screen := strings.TrimSpace(query.Get(r, "screen"))
	verb := strings.TrimSpace(query.Get(r, "verb"))
	category := strings.TrimSpace(query.Get(r, "category"))
	eventType := strings.TrimSpace(query.Get(r, "event_type"))
	startDate := strings.TrimSpace(query.Get(r, "start_date"))
	endDate := strings.TrimSpace(query.Get(r, "end_date"))

	if category != "" && !slices.Contains(validCategories, category) {
		uierrors.WriteJSON(w, http.StatusBadRequest, uierrors.Body{Status: "error", Message: "Unknown category."})
		return
	}

	page := max(1, paging.ParsePage(r))
	perPage := paging.ParsePerPage(r)
	if perPage == 0 {
		perPage = defaultPageSize
	}

	filter := audit.QueryFilter{
		Screen:    screen,
		Verb:      verb,
		Category:  category,
		EventType: eventType,
		RequestID: strings.TrimSpace(query.Get(r, "request_id")),
		Limit:     int64(perPage),
		Offset:    int64((page - 1) * perPage),
	}

	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad start_date", err, "start_date must be YYYY-MM-DD.")
			return
		}
		filter.StartTime = &t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad end_date", err, "end_date must be YYYY-MM-DD.")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events failed", err, "A database error occurred.")
		return
	}

	// Out-of-range pages show the last page.
	state := paging.State{Page: page, PerPage: perPage}.Clamp(int(total))
	filter.Offset = int64((state.Page - 1) * perPage)

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events failed", err, "A database error occurred.")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	h.Log.Debug("audit list served",
		zap.String("screen", screen),
		zap.Int("page", state.Page),
		zap.Int("shown", len(events)))

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Items:      events,
		Screen:     screen,
		Verb:       verb,
		Category:   category,
		EventType:  eventType,
		StartDate:  startDate,
		EndDate:    endDate,
		Page:       state.Page,
		PerPage:    perPage,
		TotalPages: max(1, paging.TotalPages(int(total), perPage)),
		Total:      total,
		Range:      paging.ComputeRange(state, len(events), int(total)),
	})
}
