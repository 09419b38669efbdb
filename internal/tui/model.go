// Package tui renders a live view of a launch pipeline's progress bus.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/steviee/bread-launcher/internal/progress"
)

const (
	// tickInterval is how often the bus is drained.
	tickInterval = 100 * time.Millisecond

	// maxLines is how many messages the log pane keeps.
	maxLines = 12

	// rateWidth is the number of ticks kept for the throughput sparkline.
	rateWidth = 24
)

// Task is the work the dashboard observes. It reports false without an
// error when it stopped because the bus was cancelled.
type Task interface {
	Run(bus *progress.Bus) (bool, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(bus *progress.Bus) (bool, error)

// Run calls f.
func (f TaskFunc) Run(bus *progress.Bus) (bool, error) { return f(bus) }

// Model is the bubbletea model for the progress dashboard
type Model struct {
	title    string
	bus      *progress.Bus
	task     Task
	lines    []progress.Message
	rates    []float64
	lastStep uint64
	step     uint64
	total    uint64
	started  time.Time
	now      time.Time
	done     bool
	ok       bool
	err      error
	stopping bool
	width    int
	height   int
	quitting bool
}

// NewModel creates a dashboard that runs task against bus
func NewModel(title string, bus *progress.Bus, task Task) Model {
	now := time.Now()
	return Model{
		title:   title,
		bus:     bus,
		task:    task,
		started: now,
		now:     now,
	}
}

// Init starts the task and the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		runTaskCmd(m.task, m.bus),
	)
}

// Result returns the task outcome once it has finished.
func (m Model) Result() (done, ok bool, err error) {
	return m.done, m.ok, m.err
}

// tickCmd returns a command that sends a tick message every tickInterval
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runTaskCmd runs the task to completion
func runTaskCmd(task Task, bus *progress.Bus) tea.Cmd {
	return func() tea.Msg {
		ok, err := task.Run(bus)
		return taskDoneMsg{ok: ok, err: err}
	}
}

// collect drains the bus into the log pane and samples the counters.
func (m *Model) collect() {
	m.lines = append(m.lines, m.bus.Drain()...)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}

	step, total := m.bus.Progress()
	if total != m.total || step < m.lastStep {
		// a new phase started
		m.rates = nil
		m.lastStep = 0
	}
	m.rates = append(m.rates, float64(step-m.lastStep))
	if len(m.rates) > rateWidth {
		m.rates = m.rates[len(m.rates)-rateWidth:]
	}
	m.lastStep = step
	m.step, m.total = step, total
}
