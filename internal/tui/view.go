package tui

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/steviee/bread-launcher/internal/progress"
)

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	// Render header
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	b.WriteString(m.renderProgress())
	b.WriteString("\n\n")

	b.WriteString(renderSeparator(m.innerWidth(), "Log"))
	b.WriteString("\n")
	if len(m.lines) == 0 {
		b.WriteString(footerStyle.Render("Waiting for the first message..."))
		b.WriteString("\n")
	}
	for _, line := range m.lines {
		b.WriteString(renderMessage(line))
		b.WriteString("\n")
	}
	if dropped := m.bus.Dropped(); dropped > 0 {
		b.WriteString(footerStyle.Render(fmt.Sprintf("(%d progress messages skipped)", dropped)))
		b.WriteString("\n")
	}

	// Render footer
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	b.WriteString("\n")

	return b.String()
}

func (m Model) innerWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 80
}

// renderHeader renders the title bar with the elapsed time
func (m Model) renderHeader() string {
	title := m.title
	elapsed := "Elapsed: " + units.HumanDuration(m.now.Sub(m.started))

	totalWidth := m.innerWidth()
	spacing := totalWidth - len(title) - len(elapsed) - 4 // 4 for padding
	if spacing < 1 {
		spacing = 1
	}

	var b strings.Builder
	b.WriteString("╭")
	b.WriteString(strings.Repeat("─", totalWidth-2))
	b.WriteString("╮\n")

	headerText := fmt.Sprintf(" %s%s%s ", title, strings.Repeat(" ", spacing), elapsed)
	b.WriteString("│")
	b.WriteString(headerStyle.Render(headerText))
	b.WriteString("│\n")

	b.WriteString("╰")
	b.WriteString(strings.Repeat("─", totalWidth-2))
	b.WriteString("╯")

	return b.String()
}

// renderProgress renders the bar, the counters and the throughput trend
func (m Model) renderProgress() string {
	if m.total == 0 {
		return "  " + renderProgressBar(0, 30) + "  -"
	}
	percent := float64(m.step) / float64(m.total) * 100
	return fmt.Sprintf("  %s  %d/%d  %s",
		renderProgressBarWithPercentage(percent, 30),
		m.step, m.total,
		renderSparkline(m.rates, rateWidth))
}

// renderMessage renders one log line
func renderMessage(msg progress.Message) string {
	return kindStyle(msg.Kind).Render(fmt.Sprintf("%s %s", kindIndicator(msg.Kind), msg.Text))
}

// renderFooter renders the outcome or the key help
func (m Model) renderFooter() string {
	switch {
	case m.done && m.err != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %s", m.err))
	case m.done && m.ok:
		return successStyle.Render("Done.")
	case m.done:
		return errorStyle.Render("Stopped.")
	case m.stopping:
		return footerStyle.Render("Stopping, waiting for downloads to wind down...")
	default:
		return footerStyle.Render("[q] cancel")
	}
}
