// Package ui is the terminal front end: a status bar, the message log and
// the input line.
package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/session"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// status bar and input line
	chromeLines = 2
)

// Session is the part of session.Session the UI drives.
type Session interface {
	Snapshot() session.Snapshot
	InsertRune(r rune)
	Backspace()
	SendInput() error
}

// RefreshMsg asks the model to re-read the session snapshot.
type RefreshMsg struct{}

// ClosedMsg reports that the session ended; the program quits.
type ClosedMsg struct {
	Err error
}

// Model represents the bubbletea application state.
type Model struct {
	session  Session
	viewport viewport.Model
	snap     session.Snapshot
	width    int
	height   int
	err      error
}

// New creates the model for s.
func New(s Session) *Model {
	m := &Model{
		session:  s,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeLines),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeLines, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RefreshMsg:
		m.refresh()
		return m, nil

	case ClosedMsg:
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.err = nil
		if err := m.session.SendInput(); err != nil && !errors.Is(err, session.ErrNotConnected) {
			m.err = err
		}
	case tea.KeyBackspace:
		m.session.Backspace()
	case tea.KeyRunes, tea.KeySpace:
		for _, r := range msg.Runes {
			m.session.InsertRune(r)
		}
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	default:
		return m, nil
	}

	m.refresh()
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusBar())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.inputLine())
	return b.String()
}

// Err returns the last send error shown to the user.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderLog(m.snap))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) statusBar() string {
	label := m.snap.Status.String()
	if m.err != nil {
		label += " " + m.err.Error()
	}
	addr := m.snap.PeerAddress

	padding := m.width - lipgloss.Width(label) - lipgloss.Width(addr)
	if padding < 1 {
		padding = 1
	}
	line := label + strings.Repeat(" ", padding) + addr

	return statusStyle(m.snap.Status).Render(line)
}

func (m *Model) inputLine() string {
	return truncateInput(m.snap.Input, m.width)
}

func statusStyle(s session.Status) lipgloss.Style {
	switch s {
	case session.Connected:
		return statusConnected
	case session.Idle:
		return statusIdle
	default:
		return statusDisconnected
	}
}

// renderLog formats every entry as "name: content" followed by one line per
// attachment.
func renderLog(s session.Snapshot) string {
	if len(s.Log) == 0 {
		if s.Status == session.Disconnected {
			return hintStyle.Render("waiting for peer...")
		}
		return ""
	}

	var b strings.Builder
	for i, e := range s.Log {
		if i > 0 {
			b.WriteString("\n")
		}
		name := s.PeerName
		if e.Direction == chat.Outgoing {
			name = s.LocalName
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(e.Content)
		for _, a := range e.Attachments {
			b.WriteString("\nAttachment: ")
			b.WriteString(a)
		}
	}
	return b.String()
}

// truncateInput renders the prompt, keeping the tail of input visible when it
// does not fit in width columns.
func truncateInput(input string, width int) string {
	runes := []rune(input)
	if width <= 4 || len(runes) <= width-2 {
		return "> " + input
	}
	return ".." + string(runes[len(runes)-(width-4):])
}
