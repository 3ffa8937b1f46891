package deskctl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/app/system/grid"
	"github.com/dalemusser/paydesk/internal/app/system/paging"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/spf13/cobra"
)

func newBrowseCmd(app *appEnv) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "browse SCREEN",
		Short: "Page, filter, sort and act on a screen interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parsePairs(vf.params)
			if err != nil {
				return fmt.Errorf("--param: %w", err)
			}
			c, err := app.openConsole(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			if err := vf.apply(c); err != nil {
				return err
			}
			m := newBrowseModel(cmd.Context(), app, c)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	addViewFlags(cmd, &vf, true)
	return cmd
}

type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputAction
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpText    = "←/→ page  +/- rows  s sort  S flip  f filter  c clear  r refresh  a action  q quit"
)

// refreshedMsg reports a finished list fetch.
type refreshedMsg struct{ err error }

// actedMsg reports a finished row action.
type actedMsg struct {
	out dispatch.Outcome
	req models.ActionRequest
	err error
}

// browseModel is the bubbletea model of deskctl browse.
type browseModel struct {
	ctx   context.Context
	app   *appEnv
	c     *console.Console
	snap  console.Snapshot
	table table.Model
	input textinput.Model
	mode  inputMode

	sortCol int // index into sortable columns, -1 before the first 's'
	pending *models.ActionRequest
	working bool
	flash   models.Notice
	width   int
	height  int
}

func newBrowseModel(ctx context.Context, app *appEnv, c *console.Console) browseModel {
	cols := c.Screen().Columns
	tcols := make([]table.Column, len(cols))
	for i, col := range cols {
		w := col.Width
		if w <= 0 {
			w = max(len(col.Name), 10)
		}
		tcols[i] = table.Column{Title: col.Name, Width: w}
	}

	in := textinput.New()
	in.CharLimit = 200
	in.Width = 60

	m := browseModel{
		ctx:     ctx,
		app:     app,
		c:       c,
		table:   table.New(table.WithColumns(tcols), table.WithFocused(true), table.WithHeight(15)),
		input:   in,
		sortCol: -1,
	}
	m.sync()
	return m
}

// sync re-renders the table from the console.
func (m *browseModel) sync() {
	m.snap = m.c.View()
	rows := make([]table.Row, len(m.snap.View.Rows))
	for i, r := range m.snap.View.Rows {
		rows[i] = table.Row(grid.Cells(m.snap.Screen.Columns, r))
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// selected returns the key of the highlighted row.
func (m browseModel) selected() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snap.View.Rows) {
		return "", false
	}
	return m.snap.View.Rows[i].Key(m.snap.Screen.KeyFields), true
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width - 2)
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case refreshedMsg:
		m.working = false
		if msg.err != nil {
			m.flash = models.Notice{Level: models.NoticeError, Message: noticeText(m.c, msg.err)}
		} else {
			m.flash = models.Notice{Level: models.NoticeSuccess, Message: "Refreshed."}
		}
		m.sync()
		return m, nil

	case actedMsg:
		m.working = false
		switch {
		case errors.Is(msg.err, dispatch.ErrConfirmationRequired):
			req := msg.req
			m.pending = &req
			m.flash = models.Notice{Level: models.NoticeWarning, Message: msg.out.Prompt + " (y/n)"}
		default:
			m.flash = msg.out.Notice
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		if m.pending != nil {
			req := *m.pending
			m.pending = nil
			if msg.String() == "y" {
				req.Confirmed = true
				return m.dispatch(req)
			}
			m.flash = models.Notice{Level: models.NoticeInfo, Message: "Cancelled."}
			return m, nil
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m browseModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "right", "n":
		m.c.SetPage(m.snap.View.Page + 1)
	case "left", "p":
		m.c.SetPage(m.snap.View.Page - 1)
	case "+", "-":
		m.stepPerPage(msg.String() == "+")
	case "s":
		m.nextSort()
	case "S":
		if m.snap.Sort.Active() {
			_ = m.c.ToggleSort(m.snap.Sort.Column)
		}
	case "c":
		m.c.ClearFilters()
		m.sortCol = -1
	case "f":
		return m.openInput(inputFilter, "column=text")
	case "a":
		if _, ok := m.selected(); !ok {
			m.flash = models.Notice{Level: models.NoticeWarning, Message: "No row selected."}
			return m, nil
		}
		return m.openInput(inputAction, "verb name=value ...")
	case "r":
		if m.working {
			return m, nil
		}
		m.working = true
		m.flash = models.Notice{Level: models.NoticeInfo, Message: "Loading..."}
		c, ctx := m.c, m.ctx
		return m, func() tea.Msg { return refreshedMsg{err: c.Refresh(ctx, nil)} }
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	m.sync()
	return m, nil
}

func (m browseModel) openInput(mode inputMode, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	m.table.Blur()
	return m, m.input.Focus()
}

func (m browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.closeInput()
		if mode == inputFilter {
			m.applyFilter(text)
			m.sync()
			return m, nil
		}
		return m.startAction(text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browseModel) closeInput() {
	m.mode = inputNone
	m.input.Blur()
	m.table.Focus()
}

func (m *browseModel) applyFilter(text string) {
	col, val, ok := strings.Cut(text, "=")
	if !ok {
		m.flash = models.Notice{Level: models.NoticeWarning, Message: "Filter as column=text."}
		return
	}
	if err := m.c.SetFilter(strings.TrimSpace(col), strings.TrimSpace(val)); err != nil {
		m.flash = models.Notice{Level: models.NoticeWarning, Message: fmt.Sprintf("Column %q cannot be filtered.", col)}
	}
}

func (m browseModel) startAction(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return m, nil
	}
	form, err := parsePairs(fields[1:])
	if err != nil {
		m.flash = models.Notice{Level: models.NoticeWarning, Message: err.Error()}
		return m, nil
	}
	return m.dispatch(m.app.request(fields[0], form, false))
}

func (m browseModel) dispatch(req models.ActionRequest) (tea.Model, tea.Cmd) {
	key, ok := m.selected()
	if !ok || m.working {
		return m, nil
	}
	m.working = true
	m.flash = models.Notice{Level: models.NoticeInfo, Message: "Sending..."}
	c, ctx := m.c, m.ctx
	return m, func() tea.Msg {
		out, err := c.Dispatch(ctx, key, req)
		return actedMsg{out: out, req: req, err: err}
	}
}

// nextSort moves the sort to the next sortable column, ascending.
func (m *browseModel) nextSort() {
	var sortable []string
	for _, col := range m.snap.Screen.Columns {
		if col.Sortable {
			sortable = append(sortable, col.Key())
		}
	}
	if len(sortable) == 0 {
		return
	}
	m.sortCol = (m.sortCol + 1) % len(sortable)
	_ = m.c.SetSort(sortable[m.sortCol], grid.Asc)
}

func (m *browseModel) stepPerPage(up bool) {
	opts := paging.PerPageOptions
	i := slices.Index(opts, m.snap.View.PerPage)
	switch {
	case i < 0:
		i = 0
	case up && i < len(opts)-1:
		i++
	case !up && i > 0:
		i--
	}
	_ = m.c.SetPerPage(opts[i])
}

func (m browseModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.snap.Screen.Title))
	if len(m.snap.Filters) > 0 {
		parts := make([]string, 0, len(m.snap.Filters))
		for _, k := range sortedKeys(m.snap.Filters) {
			parts = append(parts, k+"="+m.snap.Filters[k])
		}
		b.WriteString(statusStyle.Render("  filters: " + strings.Join(parts, ", ")))
	}
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(statusLine(m.snap)))
	b.WriteString("\n")
	if m.mode != inputNone {
		b.WriteString(inputStyle.Render(m.input.View()))
		b.WriteString("\n")
	} else if m.flash.Message != "" {
		b.WriteString(flashStyle(m.flash.Level).Render(m.flash.Message))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(helpText))
	return b.String()
}

func flashStyle(level string) lipgloss.Style {
	switch level {
	case models.NoticeSuccess:
		return okStyle
	case models.NoticeError:
		return errStyle
	case models.NoticeWarning:
		return warnStyle
	}
	return statusStyle
}

// noticeText is the console's notice after a failed fetch, or err itself.
func noticeText(c *console.Console, err error) string {
	if n := c.View().Notice; n != nil && n.Message != "" {
		return n.Message
	}
	return err.Error()
}
