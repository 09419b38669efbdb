package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/steviee/bread-launcher/internal/progress"
)

// Run shows the dashboard until task returns and hands back its outcome.
// It never returns while task is still running.
func Run(title string, bus *progress.Bus, task Task, opts ...tea.ProgramOption) (bool, error) {
	tracked := &trackedTask{task: task, done: make(chan struct{})}

	final, err := tea.NewProgram(NewModel(title, bus, tracked), opts...).Run()
	if err != nil {
		bus.Cancel()
		tracked.wait()
		return false, fmt.Errorf("run dashboard: %w", err)
	}

	m, isModel := final.(Model)
	if !isModel {
		bus.Cancel()
		tracked.wait()
		return false, fmt.Errorf("unexpected model type %T", final)
	}
	if done, ok, taskErr := m.Result(); done {
		return ok, taskErr
	}

	// The dashboard quit before the task reported back.
	bus.Cancel()
	return tracked.wait()
}

// trackedTask lets Run wait for a task started from a bubbletea command.
// A task that has not started by the time Run gives up never starts.
type trackedTask struct {
	task Task

	mu       sync.Mutex
	started  bool
	shutdown bool
	done     chan struct{}
	ok       bool
	err      error
}

func (t *trackedTask) Run(bus *progress.Bus) (bool, error) {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return false, nil
	}
	t.started = true
	t.mu.Unlock()

	defer close(t.done)
	t.ok, t.err = t.task.Run(bus)
	return t.ok, t.err
}

// wait blocks until a started task returns and reports its outcome.
func (t *trackedTask) wait() (bool, error) {
	t.mu.Lock()
	t.shutdown = true
	started := t.started
	t.mu.Unlock()

	if !started {
		return false, nil
	}
	<-t.done
	return t.ok, t.err
}
