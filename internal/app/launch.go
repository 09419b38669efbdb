package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/launch"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/state"
)

// Observer runs task while presenting its progress bus.
type Observer func(bus *progress.Bus, task func(*progress.Bus) (bool, error)) (bool, error)

// LaunchOptions selects the instance and the player.
type LaunchOptions struct {
	Group    string
	Name     string
	Username string

	// Memory is a RAM string such as 4G. Empty falls back to the instance,
	// then to the configured default.
	Memory string

	Stdout io.Writer
	Stderr io.Writer

	// Observe presents progress. Nil logs each message.
	Observe Observer
}

// Launch prepares an instance and spawns the game. The instance stays
// leased until the game exits. A nil process without an error means the
// launch was cancelled.
func (a *App) Launch(ctx context.Context, opts LaunchOptions) (*launch.Process, error) {
	inst, err := a.Instances.Get(opts.Group, opts.Name)
	if err != nil {
		return nil, err
	}

	username := opts.Username
	if username == "" {
		username = a.AccountName()
	}
	if username == "" {
		return nil, apperr.Errorf(apperr.Config, "app.launch", "no player name given and none remembered")
	}
	acc, err := launch.OfflineAccount(username)
	if err != nil {
		return nil, err
	}

	memory := opts.Memory
	if memory == "" {
		memory = inst.Memory
	}
	if memory == "" {
		memory = a.Config.Java.Memory
	}
	memoryMB, err := state.ParseMemoryMB(memory)
	if err != nil {
		return nil, apperr.New(apperr.Config, "app.launch", err)
	}

	lease, err := a.Instances.Acquire(inst.Group, inst.Name)
	if err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			if err := lease.Release(); err != nil {
				slog.Warn("failed to release instance", "name", inst.Name, "error", err)
			}
		}
	}()

	bus := progress.NewBus(progress.DefaultCapacity)
	if ctx.Err() != nil {
		bus.Cancel()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			bus.Cancel()
		case <-done:
		}
	}()

	var prep *launch.Prepared
	task := func(bus *progress.Bus) (bool, error) {
		p, ok, err := a.Preparer().Run(ctx, inst, bus)
		prep = p
		return ok, err
	}

	observe := opts.Observe
	if observe == nil {
		observe = LogProgress
	}
	ok, err := observe(bus, task)
	bus.Close()
	if err != nil {
		return nil, err
	}
	if !ok || prep == nil {
		slog.Info("launch cancelled", "name", inst.Name)
		return nil, nil
	}

	cmd, err := launch.Compose(a.Paths, prep.Metadata, inst, launch.Options{
		JavaPath:        prep.JavaPath,
		MemoryMB:        memoryMB,
		LauncherVersion: a.LauncherVersion,
		Stdout:          opts.Stdout,
		Stderr:          opts.Stderr,
	}, acc, a.Host)
	if err != nil {
		return nil, err
	}
	slog.Debug("composed launch command", "command", cmd.String())

	proc, err := cmd.Start()
	if err != nil {
		return nil, err
	}

	released = true
	go func() {
		<-proc.Done()
		if err := lease.Release(); err != nil {
			slog.Warn("failed to release instance", "name", inst.Name, "error", err)
		}
	}()

	a.SetAccountName(acc.Name)
	if _, err := a.Instances.Update(inst.Group, inst.Name, func(i *instance.Instance) {
		i.LastPlayed = time.Now().UTC()
	}); err != nil {
		slog.Warn("failed to record last played", "name", inst.Name, "error", err)
	}
	if err := a.Save(); err != nil {
		slog.Warn("failed to save state after launch", "error", err)
	}

	return proc, nil
}

// LogProgress runs task and logs each bus message as it arrives.
func LogProgress(bus *progress.Bus, task func(*progress.Bus) (bool, error)) (bool, error) {
	type outcome struct {
		ok  bool
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		ok, err := task(bus)
		finished <- outcome{ok: ok, err: err}
	}()

	for {
		select {
		case <-bus.Notify():
			logMessages(bus.Drain())
		case out := <-finished:
			logMessages(bus.Drain())
			return out.ok, out.err
		}
	}
}

func logMessages(msgs []progress.Message) {
	for _, msg := range msgs {
		switch msg.Kind {
		case progress.Errored:
			slog.Warn(msg.Text)
		case progress.Downloading:
			slog.Debug(msg.Text)
		default:
			slog.Info(msg.Text)
		}
	}
}
