package tui

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		m.collect()
		return m, tickCmd()

	case taskDoneMsg:
		m.done = true
		m.ok = msg.ok
		m.err = msg.err
		m.now = time.Now()
		m.collect()
		if msg.err != nil {
			slog.Error("task failed", "title", m.title, "error", msg.err)
		}
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if m.done {
			m.quitting = true
			return m, tea.Quit
		}
		// Wait for the task to notice and return.
		if !m.stopping {
			slog.Info("stop requested", "title", m.title)
			m.stopping = true
			m.bus.Cancel()
		}
		return m, nil
	}

	return m, nil
}
