// internal/shell/view.go
package shell

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	dirtyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	plainStyle   = lipgloss.NewStyle()

	promptStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("208"))
)

func levelStyle(level schemas.LogLevel) lipgloss.Style {
	switch level {
	case schemas.LevelSuccess:
		return successStyle
	case schemas.LevelWarning:
		return warningStyle
	case schemas.LevelError:
		return errorStyle
	default:
		return plainStyle
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.output.View(),
		m.footer(),
	)
}

func (m Model) header() string {
	name := "untitled"
	if path := m.orc.Path(); path != "" {
		name = filepath.Base(path)
	}
	title := titleStyle.Render("scrapedeck")
	file := " " + name
	if m.dirty {
		file += dirtyStyle.Render(" *unsaved*")
	}
	state := dimStyle.Render(fmt.Sprintf("  run: %s", m.runState))
	if m.runState == schemas.RunRunning {
		state = dimStyle.Render(fmt.Sprintf("  run: running (%d records)", m.items))
	}
	return title + file + state
}

func (m Model) footer() string {
	if m.hasPending {
		return promptStyle.Render(fmt.Sprintf("Unsaved changes before %s: [s]ave  [d]iscard  [c]ancel", m.pending))
	}
	return m.input.View()
}
