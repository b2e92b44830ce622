package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	userPrefixStyle      = lipgloss.NewStyle().Faint(true).Bold(true)
	userIndentStyle      = lipgloss.NewStyle().Faint(true)
	assistantPrefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	toolStyle            = lipgloss.NewStyle().Faint(true)
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

const (
	lineUser      = "user"
	lineAssistant = "assistant"
	lineTool      = "tool"
	lineError     = "error"
)

type transcriptEntry struct {
	Kind    string
	Content string
}

// Transcript 维护聊天记录并渲染为带样式的行。
type Transcript struct {
	width     int
	entries   []transcriptEntry
	streaming bool
}

func NewTranscript(width int) *Transcript {
	if width <= 0 {
		width = 80
	}
	return &Transcript{width: width}
}

func (t *Transcript) SetWidth(width int) {
	if width > 0 {
		t.width = width
	}
}

// AppendUser 追加用户消息。
func (t *Transcript) AppendUser(content string) {
	t.closeStream()
	t.entries = append(t.entries, transcriptEntry{Kind: lineUser, Content: content})
}

// AppendChunk 追加助手流式片段，必要时开启新的助手条目。
func (t *Transcript) AppendChunk(chunk string) {
	if !t.streaming {
		t.entries = append(t.entries, transcriptEntry{Kind: lineAssistant})
		t.streaming = true
	}
	t.entries[len(t.entries)-1].Content += chunk
}

// FinalizeAssistant 落定助手回复。流式期间已有内容时以 final 为准。
func (t *Transcript) FinalizeAssistant(final string) {
	if t.streaming {
		if final != "" {
			t.entries[len(t.entries)-1].Content = final
		}
		t.streaming = false
		return
	}
	if final != "" {
		t.entries = append(t.entries, transcriptEntry{Kind: lineAssistant, Content: final})
	}
}

// LastAssistant returns the content of the most recent assistant entry.
func (t *Transcript) LastAssistant() string {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == lineAssistant {
			return t.entries[i].Content
		}
	}
	return ""
}

func (t *Transcript) AppendTool(content string) {
	t.closeStream()
	t.entries = append(t.entries, transcriptEntry{Kind: lineTool, Content: content})
}

func (t *Transcript) AppendError(content string) {
	t.closeStream()
	t.entries = append(t.entries, transcriptEntry{Kind: lineError, Content: content})
}

func (t *Transcript) Reset() {
	t.entries = nil
	t.streaming = false
}

func (t *Transcript) IsEmpty() bool { return len(t.entries) == 0 }

func (t *Transcript) closeStream() { t.streaming = false }

// Render 渲染全部条目。
func (t *Transcript) Render() string {
	if len(t.entries) == 0 {
		return ""
	}
	var out []string
	for _, e := range t.entries {
		out = append(out, t.renderEntry(e)...)
	}
	return strings.Join(out, "\n")
}

func (t *Transcript) renderEntry(e transcriptEntry) []string {
	content := strings.TrimRight(e.Content, "\n")
	wrapWidth := t.width - 2
	if wrapWidth < 1 {
		wrapWidth = t.width
	}
	switch e.Kind {
	case lineUser:
		lines := prefixLines(wrapBlock(content, wrapWidth), "› ", "  ", userPrefixStyle, userIndentStyle)
		return append(append([]string{""}, lines...), "")
	case lineAssistant:
		lines := prefixLines(wrapBlock(content, wrapWidth), "• ", "  ", assistantPrefixStyle, assistantPrefixStyle)
		if len(lines) == 0 {
			lines = []string{assistantPrefixStyle.Render("• ")}
		}
		return lines
	case lineError:
		return prefixLines(wrapBlock(content, wrapWidth), "✗ ", "  ", errorStyle, errorStyle)
	default:
		styled := make([]string, 0, 4)
		for _, l := range wrapBlock(content, wrapWidth) {
			styled = append(styled, toolStyle.Render("  "+l))
		}
		return styled
	}
}

func prefixLines(lines []string, first, rest string, firstStyle, restStyle lipgloss.Style) []string {
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if i == 0 {
			out = append(out, firstStyle.Render(first)+l)
			continue
		}
		out = append(out, restStyle.Render(rest)+l)
	}
	return out
}

func wrapBlock(content string, width int) []string {
	if content == "" {
		return nil
	}
	out := []string{}
	for _, raw := range strings.Split(content, "\n") {
		out = append(out, wrapLine(raw, width)...)
	}
	return out
}

func wrapLine(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	out := []string{}
	current := []rune{}
	w := 0
	for _, r := range line {
		rw := runewidth.RuneWidth(r)
		if w+rw > width && len(current) > 0 {
			out = append(out, string(current))
			current = current[:0]
			w = 0
		}
		current = append(current, r)
		w += rw
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	if len(out) == 0 {
		return []string{line}
	}
	return out
}
