package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true).
			Padding(0, 1)
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("72")).
			MarginLeft(2)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
)

type chatLine struct {
	kind string // "user" | "assistant" | "tool" | "error"
	text string
}

type turnDoneMsg struct {
	result *agent.TurnResult
	err    error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(400*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// chatModel is the bubbletea model behind `olasquare chat`.
type chatModel struct {
	ctx      context.Context
	agent    turnSender
	threadID string
	persona  string

	lines  []chatLine
	input  []rune
	busy   bool
	dots   int
	status string
	width  int
}

func newChatModel(ctx context.Context, s turnSender, threadID, persona string, history []domain.Message) *chatModel {
	m := &chatModel{
		ctx:      ctx,
		agent:    s,
		threadID: threadID,
		persona:  persona,
		status:   "Ready",
	}
	for _, msg := range history {
		switch {
		case msg.Role == domain.RoleUser:
			m.lines = append(m.lines, chatLine{"user", msg.Content})
		case msg.HasToolCalls():
			for _, tc := range msg.ToolCalls {
				m.lines = append(m.lines, chatLine{"tool", fmt.Sprintf("%s(%s)", tc.Name, formatArgs(tc.Arguments))})
			}
		case msg.Role == domain.RoleAssistant:
			m.lines = append(m.lines, chatLine{"assistant", msg.Content})
		}
	}
	return m
}

func (m *chatModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case turnDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.lines = append(m.lines, chatLine{"error", msg.err.Error()})
			m.status = "Error"
			return m, nil
		}
		m.lines = append(m.lines, chatLine{"assistant", msg.result.Response})
		m.status = fmt.Sprintf("Ready · %s · %d tool round(s) · %s",
			orUnknown(msg.result.Model), msg.result.Rounds, msg.result.Duration.Round(time.Millisecond))
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		if m.busy {
			m.dots = (m.dots + 1) % 4
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m *chatModel) handleKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return tea.Quit
	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.input))
		if text == "" || m.busy {
			return nil
		}
		m.input = m.input[:0]
		if isExitWord(text) {
			return tea.Quit
		}
		m.lines = append(m.lines, chatLine{"user", text})
		m.busy = true
		m.status = "Thinking"
		return m.send(text)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, key.Runes...)
	}
	return nil
}

func (m *chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.agent.Send(m.ctx, m.threadID, text)
		return turnDoneMsg{result: result, err: err}
	}
}

func (m *chatModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("olasquare · %s · thread %s", m.persona, m.threadID)))
	b.WriteString("\n\n")

	for _, l := range m.lines {
		switch l.kind {
		case "user":
			b.WriteString(userStyle.Render("You: ") + l.text)
		case "assistant":
			b.WriteString(assistantStyle.Render("Assistant: ") + l.text)
		case "tool":
			b.WriteString(toolStyle.Render("→ " + l.text))
		case "error":
			b.WriteString(errorStyle.Render("Error: " + l.text))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.busy {
		b.WriteString("Thinking" + strings.Repeat(".", m.dots))
	} else {
		b.WriteString("> " + string(m.input) + "█")
	}
	b.WriteString("\n\n")

	status := statusStyle
	if m.width > 0 {
		status = status.Width(m.width)
	}
	b.WriteString(status.Render(m.status + " · exit/quit or esc to leave"))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown model"
	}
	return s
}
