package launch

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
)

// Process is a running game.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Start spawns the command in its instance directory. The child inherits
// the launcher's standard streams unless Options redirected them.
func (c *Command) Start() (*Process, error) {
	cmd := exec.Command(c.Path, c.Args()...) //nolint:gosec // the runtime path comes from our own provisioner
	cmd.Dir = c.Dir
	cmd.Stdin = nil
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, apperr.New(apperr.SpawnFailed, "launch.start",
			fmt.Errorf("exec %s %s: %w", c.Path, strings.Join(c.Args(), " "), err))
	}

	slog.Info("game started", "pid", cmd.Process.Pid, "java", c.Path, "dir", c.Dir)

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	p.err = p.cmd.Wait()
	if p.err != nil {
		slog.Warn("game exited", "pid", p.PID(), "error", p.err)
	} else {
		slog.Info("game exited", "pid", p.PID())
	}
	close(p.done)
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed when the child exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the child exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// ExitCode returns the child's exit code, or -1 while it is running.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Kill terminates the child.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}
