// Package tui is the interactive terminal board.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

type mode int

const (
	modeList mode = iota
	modeForm
	modeTitleFilter
	modeRange
	modeConfirmDelete
)

const (
	fieldTitle = iota
	fieldDescription
	fieldDue
	fieldCount
)

type loadedMsg struct{ err error }

type mutatedMsg struct{ res board.MutationResult }

// revalidatedMsg reports that a background refresh replaced the list.
type revalidatedMsg struct{}

type Model struct {
	board *board.Board
	ctx   context.Context
	loc   *time.Location
	now   func() time.Time

	snap       board.Snapshot
	cursor     int
	mode       mode
	form       []textinput.Model
	focus      int
	input      textinput.Model
	pendingDel *models.Task
	status     string
	statusErr  bool
	width      int
}

func New(ctx context.Context, b *board.Board) Model {
	form := make([]textinput.Model, fieldCount)
	for i, ph := range []string{"Title", "Description", "Due date (YYYY-MM-DD, optional)"} {
		ti := textinput.New()
		ti.Placeholder = ph
		ti.CharLimit = 256
		ti.Width = 50
		form[i] = ti
	}
	in := textinput.New()
	in.CharLimit = 128
	in.Width = 40

	return Model{
		board:  b,
		ctx:    ctx,
		loc:    time.Local,
		now:    time.Now,
		snap:   b.Snapshot(),
		form:   form,
		input:  in,
		status: "Loading tasks…",
	}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, b *board.Board) error {
	p := tea.NewProgram(New(ctx, b), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reload(false), m.watch())
}

// watch waits for the board to change outside a command of ours.
func (m Model) watch() tea.Cmd {
	changes, ctx := m.board.Changes(), m.ctx
	return func() tea.Msg {
		select {
		case <-changes:
			return revalidatedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) reload(force bool) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg {
		if force {
			return loadedMsg{err: b.Refresh(ctx)}
		}
		return loadedMsg{err: b.Reload(ctx)}
	}
}

func (m Model) create(title, description string, due *time.Time) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg { return mutatedMsg{res: b.Create(ctx, title, description, due)} }
}

func (m Model) complete(id int64) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg { return mutatedMsg{res: b.Complete(ctx, id)} }
}

func (m Model) remove(id int64) tea.Cmd {
	b, ctx := m.board, m.ctx
	return func() tea.Msg { return mutatedMsg{res: b.Delete(ctx, id)} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m = m.sync()
		if msg.err == nil && m.status == "Loading tasks…" {
			m.status = ""
		}
		return m, nil
	case revalidatedMsg:
		m = m.sync()
		return m, m.watch()
	case mutatedMsg:
		m = m.sync()
		if msg.res.Action == board.ActionCreate && msg.res.OK() {
			m.mode = modeList
			m.resetForm()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeForm:
			return m.updateForm(msg)
		case modeTitleFilter, modeRange:
			return m.updatePrompt(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg.String())
		default:
			return m.updateList(msg.String())
		}
	}
	return m, nil
}

// sync pulls the board state and the newest notice into the model.
func (m Model) sync() Model {
	m.snap = m.board.Snapshot()
	if notices := m.board.DrainNotices(); len(notices) > 0 {
		n := notices[len(notices)-1]
		m.status = n.Message
		m.statusErr = n.Level == board.LevelError
		if n.Err != nil {
			m.status += ": " + n.Err.Error()
		}
	}
	m.cursor = clampCursor(m.cursor, len(m.snap.Tasks))
	return m
}

func (m Model) selected() (models.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Tasks) {
		return models.Task{}, false
	}
	return m.snap.Tasks[m.cursor], true
}

func (m Model) updateList(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor = clampCursor(m.cursor-1, len(m.snap.Tasks))
	case "down", "j":
		m.cursor = clampCursor(m.cursor+1, len(m.snap.Tasks))
	case "/":
		m.mode = modeTitleFilter
		m.input.Prompt = "title contains: "
		m.input.SetValue("")
		if tc := m.board.Filter().TitleContains; tc != nil {
			m.input.SetValue(*tc)
		}
		cmd := m.input.Focus()
		return m, cmd
	case "d":
		m.mode = modeRange
		m.input.Prompt = "created FROM..TO: "
		m.input.SetValue(formatRange(m.board.Filter()))
		cmd := m.input.Focus()
		return m, cmd
	case "s":
		f := m.board.Filter()
		f.Status = nextStatus(f.Status)
		m.board.SetFilter(f)
		return m, m.reload(false)
	case "o":
		m.board.SetSort(m.snap.Sort.Next())
		m.snap = m.board.Snapshot()
	case "r":
		m.status, m.statusErr = "Refreshing…", false
		return m, m.reload(true)
	case "n":
		m.mode = modeForm
		m.resetForm()
		cmd := m.form[fieldTitle].Focus()
		return m, cmd
	case "c":
		if t, ok := m.selected(); ok {
			return m, m.complete(t.ID)
		}
	case "x":
		if t, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
			m.pendingDel = &t
			m.status, m.statusErr = fmt.Sprintf("Delete %q? y/n", t.Title), false
		}
	case "p":
		m.status, m.statusErr = "Summary: "+m.board.SummaryURL(), false
	}
	return m, nil
}

func (m Model) updateConfirm(key string) (tea.Model, tea.Cmd) {
	t := m.pendingDel
	m.mode = modeList
	m.pendingDel = nil
	switch key {
	case "y", "Y":
		if t != nil {
			return m, m.remove(t.ID)
		}
	}
	m.status, m.statusErr = "Delete cancelled", false
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case "enter":
		f := m.board.Filter()
		value := strings.TrimSpace(m.input.Value())
		if m.mode == modeTitleFilter {
			f.TitleContains = nil
			if value != "" {
				f.TitleContains = &value
			}
		} else {
			from, to, err := models.ParseDateRange(value, m.loc)
			if err != nil {
				m.status, m.statusErr = err.Error(), true
				return m, nil
			}
			f.FromDate, f.ToDate = from, to
		}
		m.mode = modeList
		m.input.Blur()
		m.board.SetFilter(f)
		return m, m.reload(false)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.resetForm()
		m.status, m.statusErr = "Cancelled", false
		return m, nil
	case "tab", "down":
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	case "enter":
		if m.focus < fieldCount-1 {
			cmd := m.focusField(m.focus + 1)
			return m, cmd
		}
		return m.submit()
	case "ctrl+s":
		return m.submit()
	}
	var cmd tea.Cmd
	m.form[m.focus], cmd = m.form[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	var due *time.Time
	if v := strings.TrimSpace(m.form[fieldDue].Value()); v != "" {
		t, err := models.ParseDate(v, m.loc, false)
		if err != nil {
			m.status, m.statusErr = "Please correct the errors in the form: "+err.Error(), true
			return m, nil
		}
		due = &t
	}
	m.status, m.statusErr = "Saving…", false
	return m, m.create(m.form[fieldTitle].Value(), m.form[fieldDescription].Value(), due)
}

func (m *Model) focusField(i int) tea.Cmd {
	m.form[m.focus].Blur()
	m.focus = i
	return m.form[i].Focus()
}

func (m *Model) resetForm() {
	for i := range m.form {
		m.form[i].SetValue("")
		m.form[i].Blur()
	}
	m.focus = fieldTitle
}

func nextStatus(s *models.TaskStatus) *models.TaskStatus {
	switch {
	case s == nil:
		return models.StatusPtr(models.StatusPending)
	case *s == models.StatusPending:
		return models.StatusPtr(models.StatusCompleted)
	default:
		return nil
	}
}

func formatRange(f models.TaskFilter) string {
	if f.FromDate == nil && f.ToDate == nil {
		return ""
	}
	var from, to string
	if f.FromDate != nil {
		from = f.FromDate.In(time.Local).Format(models.DayLayout)
	}
	if f.ToDate != nil {
		to = f.ToDate.In(time.Local).Format(models.DayLayout)
	}
	return from + ".." + to
}

func clampCursor(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
