// Package ui provides optional terminal interfaces.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/task"
)

// Board is the subset of the task service the board drives.
type Board interface {
	Snapshot(ctx context.Context) (persist.Snapshot, error)
	Complete(ctx context.Context, name string) (task.Task, error)
	Remove(ctx context.Context, name string) (task.Task, error)
	ClearCompleted(ctx context.Context) (int, error)
	Sort(ctx context.Context, key task.SortKey) ([]task.Task, error)
}

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	refresh time.Duration
	title   string
}

// WithRefresh sets how often the document is re-read. Zero disables polling.
func WithRefresh(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		c.refresh = d
	}
}

// WithTitle sets the header line, usually the document identity.
func WithTitle(title string) TUIOption {
	return func(c *tuiConfig) {
		c.title = title
	}
}

// RunTUI starts the task board.
func RunTUI(ctx context.Context, board Board, opts ...TUIOption) error {
	c := &tuiConfig{refresh: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	model := newTUIModel(ctx, board, c)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type tuiModel struct {
	ctx          context.Context
	board        Board
	title        string
	tickInterval time.Duration
	snap         *persist.Snapshot
	loadErr      error
	status       string // result of the last action
	cursor       int
	showAll      bool   // include completed tasks
	tagFilter    string // active tag, "" for none
	showHelp     bool
	busy         bool
}

type tickMsg time.Time

type snapshotMsg struct {
	snap persist.Snapshot
	err  error
}

type actionMsg struct {
	status string
	err    error
}

func newTUIModel(ctx context.Context, board Board, c *tuiConfig) *tuiModel {
	return &tuiModel{
		ctx:          ctx,
		board:        board,
		title:        c.title,
		tickInterval: c.refresh,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.load(), tickCmd(m.tickInterval))
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if m.busy {
			return m, tickCmd(m.tickInterval)
		}
		return m, tea.Batch(m.load(), tickCmd(m.tickInterval))
	case snapshotMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.loadErr = nil
		snap := msg.snap
		m.snap = &snap
		m.clampCursor()
	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, m.load()
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "h", "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "r", "f5":
		return m, m.load()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		m.cursor++
		m.clampCursor()
		return m, nil
	case "a":
		m.showAll = !m.showAll
		m.clampCursor()
		return m, nil
	case "t":
		m.tagFilter = m.nextTag()
		m.cursor = 0
		return m, nil
	case "0":
		m.tagFilter = ""
		m.cursor = 0
		return m, nil
	}

	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "x", "enter":
		if t, ok := m.selected(); ok && !t.Completed {
			return m, m.run(func(ctx context.Context) (string, error) {
				if _, err := m.board.Complete(ctx, t.Name); err != nil {
					return "", err
				}
				return fmt.Sprintf("Completed %q", t.Name), nil
			})
		}
	case "d":
		if t, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) (string, error) {
				if _, err := m.board.Remove(ctx, t.Name); err != nil {
					return "", err
				}
				return fmt.Sprintf("Removed %q", t.Name), nil
			})
		}
	case "c":
		return m, m.run(func(ctx context.Context) (string, error) {
			n, err := m.board.ClearCompleted(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Cleared %d completed task(s)", n), nil
		})
	case "p":
		return m, m.sortBy(task.SortByPriority)
	case "s":
		return m, m.sortBy(task.SortByTime)
	}
	return m, nil
}

func (m *tuiModel) sortBy(key task.SortKey) tea.Cmd {
	return m.run(func(ctx context.Context) (string, error) {
		if _, err := m.board.Sort(ctx, key); err != nil {
			return "", err
		}
		return fmt.Sprintf("Sorted by %s", key), nil
	})
}

// run executes an action off the update loop.
func (m *tuiModel) run(action func(ctx context.Context) (string, error)) tea.Cmd {
	m.busy = true
	m.status = "Saving..."
	ctx := m.ctx
	return func() tea.Msg {
		status, err := action(ctx)
		return actionMsg{status: status, err: err}
	}
}

func (m *tuiModel) load() tea.Cmd {
	ctx := m.ctx
	board := m.board
	return func() tea.Msg {
		snap, err := board.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	if d <= 0 {
		return nil
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// visible returns the tasks shown with the current filters.
func (m *tuiModel) visible() []task.Task {
	if m.snap == nil {
		return nil
	}
	tasks := m.snap.Data.Uncompleted
	if m.showAll {
		tasks = m.snap.Data.All()
	}
	if m.tagFilter != "" {
		tasks = task.FilterByTags(tasks, []string{m.tagFilter})
	}
	return tasks
}

func (m *tuiModel) selected() (task.Task, bool) {
	tasks := m.visible()
	if m.cursor < 0 || m.cursor >= len(tasks) {
		return task.Task{}, false
	}
	return tasks[m.cursor], true
}

func (m *tuiModel) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// nextTag cycles through the tags used in the document, then back to none.
func (m *tuiModel) nextTag() string {
	if m.snap == nil {
		return ""
	}
	catalog := task.TagCatalog(m.snap.Data.All())
	if len(catalog) == 0 {
		return ""
	}
	if m.tagFilter == "" {
		return catalog[0]
	}
	for i, tag := range catalog {
		if tag == m.tagFilter && i+1 < len(catalog) {
			return catalog[i+1]
		}
	}
	return ""
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b, m.title)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	if m.loadErr != nil {
		b.WriteString("Error loading task document:\n")
		b.WriteString("  " + m.loadErr.Error() + "\n\n")
		writeFooter(&b, m.tickInterval)
		return b.String()
	}
	if m.snap == nil {
		b.WriteString("Loading...\n\n")
		writeFooter(&b, m.tickInterval)
		return b.String()
	}

	writeOverview(&b, m.snap)
	if m.tagFilter != "" {
		b.WriteString(fmt.Sprintf("Filter: #%s (0 to clear)\n\n", m.tagFilter))
	}
	writeTasks(&b, m.visible(), m.cursor)
	if m.status != "" {
		b.WriteString(m.status + "\n\n")
	}
	writeFooter(&b, m.tickInterval)
	return b.String()
}

func writeTitle(b *strings.Builder, title string) {
	if title == "" {
		title = "mdtasks"
	} else {
		title = "mdtasks: " + title
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func writeOverview(b *strings.Builder, snap *persist.Snapshot) {
	tz := snap.Metadata.Timezone
	if tz == "" {
		tz = "unset"
	}
	b.WriteString(fmt.Sprintf("  Open: %d  Completed: %d  Timezone: %s\n\n",
		len(snap.Data.Uncompleted), len(snap.Data.Completed), tz))
	for _, w := range snap.Warnings {
		b.WriteString("  warning: " + w + "\n")
	}
	if len(snap.Warnings) > 0 {
		b.WriteString("\n")
	}
}

func writeTasks(b *strings.Builder, tasks []task.Task, cursor int) {
	if len(tasks) == 0 {
		b.WriteString("  No tasks.\n\n")
		return
	}
	for i, t := range tasks {
		pointer := " "
		if i == cursor {
			pointer = ">"
		}
		b.WriteString(pointer + formatTask(t) + "\n")
	}
	b.WriteString("\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh\n")
	b.WriteString("  up/k down/j  Move selection\n")
	b.WriteString("  x, enter     Complete selected task\n")
	b.WriteString("  d            Remove selected task\n")
	b.WriteString("  c            Clear completed tasks\n")
	b.WriteString("  p            Sort by priority\n")
	b.WriteString("  s            Sort by time\n")
	b.WriteString("  a            Toggle completed tasks\n")
	b.WriteString("  t            Cycle tag filter\n")
	b.WriteString("  0            Clear tag filter\n")
	b.WriteString("  h, ?         Toggle this help screen\n\n")
}

func writeFooter(b *strings.Builder, interval time.Duration) {
	if interval <= 0 {
		b.WriteString("Press h for help | q to quit\n")
		return
	}
	b.WriteString(fmt.Sprintf("Press h for help | q to quit | Refreshing every %s\n", interval))
}

func formatTask(t task.Task) string {
	statusIcon := " "
	if t.Completed {
		statusIcon = "x"
	}
	line := fmt.Sprintf(" [%s] %s", statusIcon, t.Name)
	if t.Priority != "" {
		line += fmt.Sprintf(" (%s)", t.Priority)
	}
	if t.Date != "" {
		when := t.Date
		if t.Time != "" {
			when += " " + t.Time
		}
		if t.Duration != "" {
			when += " +" + t.Duration
		}
		line += "  " + when
	}
	if len(t.Tags) > 0 {
		line += "  " + task.FormatTags(t.Tags)
	}
	return line
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
