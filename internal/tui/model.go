package tui

import (
	"context"
	"fmt"
	"strings"

	"anvil-cli/internal/agent"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type Options struct {
	Agent         *agent.Agent
	Model         string
	Provider      string
	Workdir       string
	InitialPrompt string
}

type agentEventMsg struct {
	Event agent.Event
}

type startPromptMsg struct {
	Text string
}

type Model struct {
	textarea   textarea.Model
	viewport   viewport.Model
	spin       spinner.Model
	transcript *Transcript
	agent      *agent.Agent
	events     <-chan agent.Event
	modelName  string
	provider   string
	workdir    string
	initSend   string
	pending    bool
	thinking   bool
	copied     bool
	err        error
	width      int
	height     int
}

func New(opts Options) *Model {
	ti := textarea.New()
	ti.Placeholder = "Ask anything…"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.SetWidth(90)
	ti.SetHeight(1) // 默认单行，按需扩展
	ti.ShowLineNumbers = false
	ti.Focus()

	vp := viewport.New(90, 16)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return &Model{
		textarea:   ti,
		viewport:   vp,
		spin:       spin,
		transcript: NewTranscript(88),
		agent:      opts.Agent,
		modelName:  opts.Model,
		provider:   opts.Provider,
		workdir:    opts.Workdir,
		initSend:   strings.TrimSpace(opts.InitialPrompt),
		width:      90,
		height:     24,
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, textarea.Blink}
	if m.initSend != "" {
		prompt := m.initSend
		cmds = append(cmds, func() tea.Msg {
			return startPromptMsg{Text: prompt}
		})
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case startPromptMsg:
		cmds = append(cmds, m.startTurn(msg.Text))
		return m, tea.Batch(cmds...)
	case agentEventMsg:
		m.handleAgentEvent(msg.Event)
		m.refresh()
		if m.events != nil {
			cmds = append(cmds, m.listenEvents())
		}
		return m, tea.Batch(cmds...)
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && msg.Alt {
			// Alt+Enter 在输入框里换行。
			msg = tea.KeyMsg{Type: tea.KeyEnter}
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			m.setComposerHeight()
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c":
			m.agent.Cancel()
			return m, tea.Quit
		case "esc":
			if m.pending {
				m.agent.Cancel()
			}
			return m, nil
		case "ctrl+y":
			if last := m.transcript.LastAssistant(); last != "" {
				m.err = clipboard.WriteAll(last)
				m.copied = m.err == nil
			}
			return m, nil
		case "ctrl+l":
			m.transcript.Reset()
			m.agent.Conversation().Clear()
			m.refresh()
			return m, nil
		case "pgup":
			m.viewport.ViewUp()
			return m, nil
		case "pgdown":
			m.viewport.ViewDown()
			return m, nil
		case "enter":
			if m.pending {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.setComposerHeight()
			cmds = append(cmds, m.startTurn(input))
			return m, tea.Batch(cmds...)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.setComposerHeight()
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	banner := renderBanner(m.modelName, m.provider, m.workdir, m.width)
	chat := chatPaneStyle.Width(maxInt(20, m.width-2)).Render(m.viewport.View())
	composer := composerStyle.Width(maxInt(20, m.width-2)).Render(m.textarea.View())
	status := m.statusLine()
	hints := renderHints(m.width)
	return lipgloss.JoinVertical(lipgloss.Left, banner, chat, composer, status, hints)
}

func (m *Model) startTurn(input string) tea.Cmd {
	m.transcript.AppendUser(input)
	m.pending = true
	m.copied = false
	m.err = nil
	m.refresh()
	m.events = m.agent.RunTurn(context.Background(), input)
	return m.listenEvents()
}

func (m *Model) listenEvents() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return agentEventMsg{Event: agent.Done{}}
		}
		return agentEventMsg{Event: ev}
	}
}

func (m *Model) handleAgentEvent(ev agent.Event) {
	switch ev := ev.(type) {
	case agent.Thinking:
		m.thinking = true
	case agent.TextDelta:
		m.thinking = false
		m.transcript.AppendChunk(ev.Text)
	case agent.TextResponse:
		m.thinking = false
		m.transcript.FinalizeAssistant(ev.Content)
	case agent.ToolCallStart:
		m.thinking = false
		m.transcript.AppendTool(fmt.Sprintf("▸ %s", ev.Name))
	case agent.ToolCallResult:
		status := "ok"
		if !ev.Success {
			status = "failed"
		}
		m.transcript.AppendTool(fmt.Sprintf("▾ %s %s (%d bytes)", ev.Name, status, len(ev.Result)))
	case agent.Error:
		m.thinking = false
		m.transcript.AppendError(ev.Message)
	case agent.Done:
		m.pending = false
		m.thinking = false
		m.events = nil
	}
}

func (m *Model) refresh() {
	content := m.transcript.Render()
	if content == "" {
		content = "Start a conversation. Esc interrupts a running turn."
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	composerHeight := m.textarea.Height() + 2
	headerHeight := 5
	statusHeight := 2
	chatHeight := height - composerHeight - headerHeight - statusHeight - 2
	if chatHeight < 4 {
		chatHeight = 4
	}
	m.viewport.Width = maxInt(20, width-4)
	m.viewport.Height = chatHeight
	m.textarea.SetWidth(maxInt(20, width-4))
	m.transcript.SetWidth(m.viewport.Width)
	m.refresh()
}

func (m *Model) setComposerHeight() {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > 6 {
		lines = 6
	}
	if m.textarea.Height() != lines {
		m.textarea.SetHeight(lines)
		if m.width > 0 && m.height > 0 {
			m.resize(m.width, m.height)
		}
	}
}

func (m *Model) statusLine() string {
	parts := []string{
		fmt.Sprintf("Model: %s", m.modelName),
		fmt.Sprintf("~%d tokens", m.agent.Conversation().EstimateTokens()),
	}
	if m.pending {
		label := "Working…"
		if m.thinking {
			label = "Thinking…"
		}
		parts = append(parts, label+" "+m.spin.View())
	}
	if m.copied {
		parts = append(parts, "Copied reply")
	}
	if m.err != nil {
		parts = append(parts, fmt.Sprintf("Error: %v", m.err))
	}
	line := strings.Join(parts, " • ")
	if w := maxInt(20, m.width-2); runewidth.StringWidth(line) > w {
		line = runewidth.Truncate(line, w, "…")
	}
	return statusStyle.Width(maxInt(20, m.width)).Render(line)
}

func renderBanner(model, provider, workdir string, width int) string {
	line1 := ">_ Anvil"
	line2 := fmt.Sprintf("model:     %s (%s)", model, provider)
	dirLine := fmt.Sprintf("directory: %s", workdir)
	return bannerStyle.Width(maxInt(40, width-2)).Render(strings.Join([]string{line1, line2, dirLine}, "\n"))
}

func renderHints(width int) string {
	hint := "Enter 发送 • Esc 中断 • Ctrl+Y 复制回复 • Ctrl+L 清空会话 • Ctrl+C 退出"
	return hintStyle.Width(maxInt(20, width)).Render(hint)
}

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	chatPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5E6472")).
			Padding(0, 1)
	composerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5E6472")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7A85")).
			Padding(0, 1)
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7A85")).
			Padding(0, 1)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
