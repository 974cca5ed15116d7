// Package tui is the terminal chat screen: a connections sidebar, the
// conversation timeline and an input line.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/karthikraju391/codecrush/chat"
	"github.com/karthikraju391/codecrush/chatview"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/session"
)

const (
	sidebarWidth = 26
	chromeHeight = 4 // header, input, status and a spacer
)

// Conversation is the part of chatview.Controller the screen drives.
type Conversation interface {
	Activate(ctx context.Context, counterpartyID string) (uint64, error)
	Deactivate()
	Send(text string) error
	Retry(tempID string) error
	Snapshot() chatview.View
	Updates() <-chan struct{}
	Self() chat.Author
}

type Options struct {
	Conversation Conversation
	Contacts     *session.Directory
	// Initial opens this counterparty on start when set.
	Initial  string
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

type focus int

const (
	focusSidebar focus = iota
	focusInput
)

type (
	updateMsg struct{}
	openMsg   struct{ id string }
)

type Model struct {
	conv     Conversation
	contacts []models.Contact
	names    *session.Directory
	self     chat.Author
	initial  string
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger

	viewport viewport.Model
	input    textinput.Model
	view     chatview.View
	cursor   int
	focus    focus
	width    int
	height   int
	status   string
	quitting bool
}

func New(opts Options) Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Contacts == nil {
		opts.Contacts = session.NewDirectory()
	}

	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.Prompt = "› "
	input.CharLimit = 2000

	m := Model{
		conv:     opts.Conversation,
		contacts: opts.Contacts.All(),
		names:    opts.Contacts,
		self:     opts.Conversation.Self(),
		initial:  opts.Initial,
		loc:      opts.Location,
		now:      opts.Now,
		log:      opts.Log,
		viewport: viewport.New(80, 20),
		input:    input,
		view:     opts.Conversation.Snapshot(),
	}
	m.refresh()
	return m
}

// Run blocks until the user quits. The conversation is deactivated on
// every exit path.
func Run(opts Options) error {
	defer opts.Conversation.Deactivate()
	_, err := tea.NewProgram(New(opts), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, listen(m.conv.Updates())}
	if m.initial != "" {
		id := m.initial
		cmds = append(cmds, func() tea.Msg { return openMsg{id: id} })
	}
	return tea.Batch(cmds...)
}

// listen waits for the next controller change.
func listen(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return updateMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-sidebarWidth-2, 10)
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = m.viewport.Width - 4
		m.refresh()
		return m, nil

	case updateMsg:
		m.view = m.conv.Snapshot()
		m.refresh()
		return m, listen(m.conv.Updates())

	case openMsg:
		return m, m.open(msg.id)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "tab":
		return *m, m.toggleFocus()
	case "ctrl+r":
		m.retry()
		return *m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return *m, cmd
	}

	if m.focus == focusSidebar {
		switch msg.String() {
		case "q", "esc":
			return m.quit()
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.contacts)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.contacts) > 0 {
				return *m, m.open(m.contacts[m.cursor].ID)
			}
		}
		return *m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		return *m, m.toggleFocus()
	case tea.KeyEnter:
		m.send()
		return *m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return *m, cmd
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.conv.Deactivate()
	return *m, tea.Quit
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.Blur()
		return nil
	}
	if m.view.CounterpartyID == "" {
		return nil
	}
	m.focus = focusInput
	return m.input.Focus()
}

// open activates id unless it is already the open conversation.
func (m *Model) open(id string) tea.Cmd {
	for i, c := range m.contacts {
		if c.ID == id {
			m.cursor = i
		}
	}
	if id != m.view.CounterpartyID {
		if _, err := m.conv.Activate(context.Background(), id); err != nil {
			m.status = err.Error()
			return nil
		}
		m.status = ""
		m.input.Reset()
		m.view = m.conv.Snapshot()
		m.refresh()
	}
	m.focus = focusInput
	return m.input.Focus()
}

func (m *Model) send() {
	err := m.conv.Send(m.input.Value())
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return
	case err != nil:
		m.status = err.Error()
		return
	}
	m.status = ""
	m.input.Reset()
}

func (m *Model) retry() {
	tempID, ok := lastFailed(m.view.Messages)
	if !ok {
		return
	}
	if err := m.conv.Retry(tempID); err != nil {
		m.log.Warn("Retry rejected", "temp_id", tempID, "error", err)
		m.status = err.Error()
	}
}

// refresh re-renders the timeline and keeps the newest message in view.
func (m *Model) refresh() {
	m.viewport.SetContent(renderTimeline(m.view, m.self, m.viewport.Width, m.now(), m.loc))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := "CodeCrush"
	if id := m.view.CounterpartyID; id != "" {
		title += " · " + m.names.DisplayName(id)
		if !m.view.Connected {
			title += metaStyle.Render(" (connecting)")
		}
	}
	header := selectedStyle.Render(title)

	sidebar := renderSidebar(m.contacts, m.cursor, m.view.CounterpartyID, sidebarWidth)
	sidebar = lipgloss.NewStyle().
		Height(m.viewport.Height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(mutedColor).
		Render(sidebar)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", m.viewport.View())

	status := metaStyle.Render("tab switch focus · enter open/send · ctrl+r retry · ctrl+c quit")
	switch {
	case m.status != "":
		status = errorStyle.Render(m.status)
	case m.view.Err != nil:
		status = errorStyle.Render(m.view.Err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.input.View(), status)
}
