// internal/app/features/screens/view.go
package screens

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/paydesk/internal/app/features/errors"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/limits"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"go.uber.org/zap"
)

const (
	filterPrefix = "f."
	paramPrefix  = "p."
)

const msgBusy = "A request is already in progress."

// ServeCatalog handles GET /screens.
func (h *Handler) ServeCatalog(w http.ResponseWriter, r *http.Request) {
	screens := h.Catalog.Screens()
	out := make([]catalogEntry, len(screens))
	for i, s := range screens {
		out[i] = newCatalogEntry(s)
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"screens": out})
}

// ServeView handles GET /screens/{screen}.
//
// The console is fetched on first open and when refresh=1. The remaining
// query parameters are applied in order: clear=1, f.<column>, sort and
// dir, per_page, page. p.<name> values become list params of the fetch.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.consoleFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	if q.Get("refresh") == "1" || !c.View().Loaded {
		if !h.refresh(w, r, c, listParams(q)) {
			return
		}
	}
	if err := applyQuery(c, q); err != nil {
		h.ErrLog.Respond(w, r, "bad view query", err, err.Error())
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, newViewResponse(c.View()))
}

// ServeRefresh handles POST /screens/{screen}/refresh. Form values named
// p.<name> replace the request-time list params.
func (h *Handler) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.consoleFor(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxActionFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.")
		return
	}
	if !h.refresh(w, r, c, listParams(r.PostForm)) {
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, newViewResponse(c.View()))
}

// refresh fetches the list and writes the error response on failure.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request, c *console.Console, params map[string]string) bool {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Fetch(), h.Log, "list "+c.Screen().Name)
	defer cancel()

	err := c.Refresh(ctx, params)
	if err == nil {
		return true
	}
	msg := msgBusy
	if !errors.Is(err, console.ErrBusy) {
		msg = upstream.UserMessage(err, upstream.MsgLoadFailed)
		if n := c.View().Notice; n != nil {
			msg = n.Message
		}
	}
	h.ErrLog.Respond(w, r, "list fetch failed", err, msg)
	return false
}

// applyQuery applies the view controls in q to c.
func applyQuery(c *console.Console, q url.Values) error {
	if q.Get("clear") == "1" {
		c.ClearFilters()
	}
	for k, vals := range q {
		col, ok := strings.CutPrefix(k, filterPrefix)
		if !ok || len(vals) == 0 {
			continue
		}
		if err := c.SetFilter(col, vals[0]); err != nil {
			return fmt.Errorf("column %q cannot be filtered: %w", col, err)
		}
	}
	if q.Has("sort") {
		if err := c.SetSort(q.Get("sort"), grid.ParseDirection(q.Get("dir"))); err != nil {
			return fmt.Errorf("column %q cannot be sorted: %w", q.Get("sort"), err)
		}
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || c.SetPerPage(n) != nil {
			return fmt.Errorf("per_page must be one of %v: %w", paging.PerPageOptions, console.ErrInvalidPerPage)
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SetPage(n)
		}
	}
	return nil
}

// listParams collects p.<name> values. It returns nil when there are
// none, so the console keeps its previous params.
func listParams(v url.Values) map[string]string {
	var out map[string]string
	for k, vals := range v {
		name, ok := strings.CutPrefix(k, paramPrefix)
		if !ok || name == "" || len(vals) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = strings.TrimSpace(vals[0])
	}
	return out
}

// ServeExport handles GET /screens/{screen}/export.csv: the filtered and
// sorted rows of every page, formatted as displayed.
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.consoleFor(w, r)
	if !ok {
		return
	}
	if !c.View().Loaded {
		if !h.refresh(w, r, c, nil) {
			return
		}
	}

	name := fmt.Sprintf("%s-%s.csv", c.Screen().Name, time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := c.Export(w); err != nil {
		// headers are gone; log only
		h.Log.Error("csv export failed", zap.String("screen", c.Screen().Name), zap.Error(err))
	}
}

// ServeEndSession handles DELETE /session.
func (h *Handler) ServeEndSession(w http.ResponseWriter, r *http.Request) {
	id := identity(r).ID
	if h.Sessions != nil {
		ended, err := h.Sessions.End(w, r)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "session end failed", err, "Could not end the session.")
			return
		}
		if ended != "" {
			id = ended
		}
	}
	n := h.Consoles.DropSession(id)
	h.Log.Info("session ended", zap.String("session_id", id), zap.Int("consoles", n))
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "released": n})
}
