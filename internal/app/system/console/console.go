// Package console is the one parametrized component behind every
// back-office screen: fetch, filter, sort, paginate, act, refetch.
//
// A Console owns the mutable state of one screen for one operator: the
// fetched records, FilterState, SortState, PageState, the busy flag and
// the last notice. The screen description it renders is static.
package console

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/csvutil"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/app/system/upstream"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a fetch or action is already in flight.
	ErrBusy = errors.New("console: busy")
	// ErrUnknownRow is returned when no loaded record has the given key.
	ErrUnknownRow = errors.New("console: no row with that key")
	// ErrUnknownColumn is returned for filter or sort on a column that
	// does not exist or does not allow it.
	ErrUnknownColumn = errors.New("console: unknown column")
	// ErrInvalidPerPage is returned for a page size outside the options.
	ErrInvalidPerPage = errors.New("console: invalid page size")
)

// Console is safe for concurrent use. Network calls run outside the lock;
// the busy flag keeps a second fetch or action from starting meanwhile.
type Console struct {
	screen *models.Screen
	up     upstream.Poster
	disp   *dispatch.Dispatcher
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	records   []models.Record
	filters   grid.Filters
	sort      grid.Sort
	page      paging.State
	params    map[string]string // request-time list params
	busy      bool
	loaded    bool
	fetchedAt time.Time
	notice    *models.Notice
	lastUsed  time.Time
}

// New returns an empty console for screen. Nothing is fetched until
// Refresh is called.
func New(screen *models.Screen, up upstream.Poster, disp *dispatch.Dispatcher, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Console{
		screen:  screen,
		up:      up,
		disp:    disp,
		log:     log.With(zap.String("screen", screen.Name)),
		now:     time.Now,
		filters: grid.Filters{},
		page:    paging.New(screen.PerPage),
		params:  map[string]string{},
	}
	c.lastUsed = c.now()
	return c
}

// Screen returns the static screen description.
func (c *Console) Screen() *models.Screen { return c.screen }

// begin sets the busy flag. Every successful begin is paired with end.
func (c *Console) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.notice = nil
	return nil
}

func (c *Console) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Busy reports whether a fetch or action is in flight.
func (c *Console) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Refresh fetches the list endpoint and replaces the record set. An
// explicit reload resets FilterState; sort and page survive, the page
// clamped to the new set. params replaces the request-time list params
// when non-nil. On failure the previous records stay visible and the
// notice carries the message.
func (c *Console) Refresh(ctx context.Context, params map[string]string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if params != nil {
		c.mu.Lock()
		c.params = maps.Clone(params)
		c.mu.Unlock()
	}
	return c.load(ctx, true)
}

// Resync refetches without touching FilterState. It is what runs after a
// successful action and assumes the caller already holds the busy flag.
func (c *Console) Resync(ctx context.Context) error {
	return c.load(ctx, false)
}

// load performs the list POST outside the lock and swaps the result in.
func (c *Console) load(ctx context.Context, resetFilters bool) error {
	c.mu.Lock()
	payload := c.listPayloadLocked()
	c.mu.Unlock()

	start := c.now()
	env, err := c.up.Post(ctx, c.screen.List, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Warn("list fetch failed", zap.Error(err))
		c.setNoticeLocked(models.NoticeError, htmlsanitize.PlainText(upstream.UserMessage(err, upstream.MsgLoadFailed)))
		return err
	}

	c.records = env.Records
	c.loaded = true
	c.fetchedAt = c.now()
	if resetFilters {
		c.filters.Clear()
	}
	c.page = c.page.Clamp(len(grid.Filter(c.records, c.screen.Columns, c.filters)))
	c.log.Debug("list fetched",
		zap.Int("records", len(c.records)),
		zap.Duration("elapsed", c.fetchedAt.Sub(start)))
	return nil
}

func (c *Console) listPayloadLocked() map[string]any {
	p := make(map[string]any, len(c.screen.Params)+len(c.params))
	for k, v := range c.screen.Params {
		p[k] = v
	}
	for k, v := range c.params {
		p[k] = v
	}
	return p
}

func (c *Console) setNoticeLocked(level, msg string) {
	c.notice = &models.Notice{Level: level, Message: msg}
}

// SetFilter sets the filter text of a filterable column and returns to
// the first page.
func (c *Console) SetFilter(column, value string) error {
	col, ok := c.screen.Column(column)
	if !ok || !col.Filterable {
		return ErrUnknownColumn
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	if c.filters.Set(col.Key(), value) {
		c.page.Page = 1
	}
	return nil
}

// ClearFilters empties every filter, drops the sort and returns to page 1,
// restoring the unfiltered, unsorted view.
func (c *Console) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	c.filters.Clear()
	c.sort = grid.Sort{}
	c.page.Page = 1
}

// SetSort selects column and direction, replacing any prior sort. An empty
// column clears the sort.
func (c *Console) SetSort(column string, dir grid.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	if column == "" {
		c.sort = grid.Sort{}
		return nil
	}
	col, ok := c.screen.Column(column)
	if !ok || !col.Sortable {
		return ErrUnknownColumn
	}
	if dir != grid.Desc {
		dir = grid.Asc
	}
	c.sort = grid.Sort{Column: col.Key(), Dir: dir}
	return nil
}

// ToggleSort clicks a column header: the active column flips direction,
// any other column becomes the ascending sort.
func (c *Console) ToggleSort(column string) error {
	col, ok := c.screen.Column(column)
	if !ok || !col.Sortable {
		return ErrUnknownColumn
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	c.sort.Toggle(col.Key())
	return nil
}

// SetPage moves to page n. Out-of-range pages are clamped when the view
// is computed.
func (c *Console) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	if n < 1 {
		n = 1
	}
	c.page.Page = n
}

// SetPerPage changes the page size, keeping the first visible row on the
// new page.
func (c *Console) SetPerPage(n int) error {
	if !paging.ValidPerPage(n) {
		return ErrInvalidPerPage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()
	first := (c.page.Page - 1) * c.page.PerPage
	c.page.PerPage = n
	c.page.Page = first/n + 1
	return nil
}

// Snapshot is a point-in-time rendering of the console.
type Snapshot struct {
	Screen    *models.Screen
	Busy      bool
	Loaded    bool
	FetchedAt time.Time
	View      grid.View
	Filters   grid.Filters
	Sort      grid.Sort
	Params    map[string]string
	Notice    *models.Notice
}

// View runs the filter, sort and page pipeline over the loaded records and
// stores the clamped page.
func (c *Console) View() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = c.now()

	v, p := grid.Apply(c.records, c.screen.Columns, c.filters, c.sort, c.page)
	c.page = p

	snap := Snapshot{
		Screen:    c.screen,
		Busy:      c.busy,
		Loaded:    c.loaded,
		FetchedAt: c.fetchedAt,
		View:      v,
		Filters:   c.filters.Clone(),
		Sort:      c.sort,
		Params:    maps.Clone(c.params),
	}
	if c.notice != nil {
		n := *c.notice
		snap.Notice = &n
	}
	return snap
}

// Row returns the loaded record with the given key.
func (c *Console) Row(key string) (models.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowLocked(key)
}

func (c *Console) rowLocked(key string) (models.Record, error) {
	for _, r := range c.records {
		if r.Key(c.screen.KeyFields) == key {
			return r, nil
		}
	}
	return nil, ErrUnknownRow
}

// Dispatch runs a row action against the record with the given key. The
// console is busy for the POST and the refetch that follows a success.
func (c *Console) Dispatch(ctx context.Context, key string, req models.ActionRequest) (dispatch.Outcome, error) {
	if err := c.begin(); err != nil {
		return dispatch.Outcome{}, err
	}
	defer c.end()

	// Resolved under the busy flag so no refresh can swap the records
	// between lookup and send.
	target, err := c.Row(key)
	if err != nil {
		return dispatch.Outcome{Notice: models.Notice{Level: models.NoticeError, Message: "That row is no longer loaded. Refresh and try again."}}, err
	}

	req.Target = target
	out, err := c.disp.Do(ctx, c.screen, req, c)

	c.mu.Lock()
	n := out.Notice
	c.notice = &n
	c.mu.Unlock()
	return out, err
}

// Batch runs one verb over the records with the given keys. Unknown keys
// fail the whole request before anything is sent.
func (c *Console) Batch(ctx context.Context, keys []string, req models.ActionRequest, policy dispatch.BatchPolicy) (dispatch.BatchReport, error) {
	if err := c.begin(); err != nil {
		return dispatch.BatchReport{}, err
	}
	defer c.end()

	c.mu.Lock()
	targets := make([]models.Record, 0, len(keys))
	for _, k := range keys {
		r, err := c.rowLocked(k)
		if err != nil {
			c.mu.Unlock()
			return dispatch.BatchReport{}, err
		}
		targets = append(targets, r)
	}
	c.mu.Unlock()

	rep, err := c.disp.Batch(ctx, c.screen, req, targets, policy, c)

	c.mu.Lock()
	n := rep.Notice
	c.notice = &n
	c.mu.Unlock()
	return rep, err
}

// Export writes the filtered and sorted records, every page, as CSV with
// formatted cells.
func (c *Console) Export(w io.Writer) error {
	c.mu.Lock()
	rows := grid.Ordered(c.records, c.screen.Columns, c.filters, c.sort)
	c.lastUsed = c.now()
	c.mu.Unlock()

	header := make([]string, len(c.screen.Columns))
	for i, col := range c.screen.Columns {
		header[i] = col.Name
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = grid.Cells(c.screen.Columns, r)
	}
	return csvutil.WriteTable(w, header, cells)
}

// IdleSince returns when the console was last used.
func (c *Console) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}
