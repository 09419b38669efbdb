package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline characters from low to high
var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// renderSparkline creates a sparkline graph from a slice of values.
// Shorter inputs are left-padded with zeros; longer ones keep the tail.
func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("▁", width)
	}

	if len(values) < width {
		padding := make([]float64, width-len(values))
		values = append(padding, values...)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	// Avoid division by zero
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var result strings.Builder
	for _, v := range values {
		index := int((v - lo) / span * float64(len(sparklineChars)-1))
		index = max(0, min(index, len(sparklineChars)-1))
		result.WriteRune(sparklineChars[index])
	}

	return result.String()
}

// renderProgressBar creates a progress bar
// value: percentage (0-100)
// width: total width of the bar
func renderProgressBar(value float64, width int) string {
	value = math.Max(0, math.Min(value, 100))

	filledWidth := int(math.Round(value / 100.0 * float64(width)))
	emptyWidth := width - filledWidth

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", emptyWidth)

	return lipgloss.NewStyle().
		Foreground(completionColor(value)).
		Render(filled + empty)
}

// renderProgressBarWithPercentage renders a progress bar with percentage text
func renderProgressBarWithPercentage(value float64, barWidth int) string {
	bar := renderProgressBar(value, barWidth)
	percentage := fmt.Sprintf("% 3.0f%%", value)
	return fmt.Sprintf("%s %s", bar, percentage)
}

// completionColor returns a color based on how far a phase has come
func completionColor(percentage float64) lipgloss.Color {
	switch {
	case percentage >= 100:
		return lipgloss.Color("#00FF00") // Green
	case percentage >= 50:
		return lipgloss.Color("#00ADD8") // Cyan
	default:
		return lipgloss.Color("#FFA500") // Orange
	}
}

// renderSeparator creates a horizontal separator
func renderSeparator(width int, title string) string {
	if title == "" {
		return strings.Repeat("─", width)
	}

	var b strings.Builder
	b.WriteString("─ ")
	b.WriteString(title)
	b.WriteString(" ")
	remaining := width - len(title) - 4 // 4 for "─  ─"
	if remaining > 0 {
		b.WriteString(strings.Repeat("─", remaining))
	}
	return b.String()
}
