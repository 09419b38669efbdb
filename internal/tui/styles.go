package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/steviee/bread-launcher/internal/progress"
)

var (
	// Header styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#C68E17")).
			Padding(0, 1)

	downloadingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#808080"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ADD8"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	// Footer style
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080"))

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

// kindStyle returns the style for a message kind
func kindStyle(kind progress.Kind) lipgloss.Style {
	switch kind {
	case progress.Downloading:
		return downloadingStyle
	case progress.Info:
		return infoStyle
	case progress.Errored:
		return errorStyle
	default:
		return lipgloss.NewStyle()
	}
}

// kindIndicator returns the symbol drawn in front of a message
func kindIndicator(kind progress.Kind) string {
	switch kind {
	case progress.Downloading:
		return "↓"
	case progress.Info:
		return "●"
	case progress.Errored:
		return "✗"
	default:
		return "?"
	}
}
