package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run 封装 Bubble Tea 入口。
func Run(opts Options) error {
	if opts.Agent == nil {
		return errors.New("tui: agent is required")
	}
	program := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
