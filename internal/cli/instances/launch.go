package instances

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/tui"
)

// LaunchFlags holds all flags for the launch command
type LaunchFlags struct {
	Group    string
	Username string
	Memory   string
	TUI      bool
}

// NewLaunchCommand creates the instances launch subcommand
func NewLaunchCommand() *cobra.Command {
	flags := &LaunchFlags{}

	cmd := &cobra.Command{
		Use:   "launch <name>",
		Short: "Download what an instance needs and start the game",
		Long: `Prepare an instance and start the game in offline mode.

Preparation installs the Java runtime the version asks for, then verifies and
downloads the client jar, libraries, natives and assets. Files already on disk
with the right checksum are not downloaded again. Press Ctrl+C (or q in the
--tui view) to stop preparation. The command returns when the game exits.

The player name is remembered for the next launch.`,
		Example: `  # Launch as Steve
  bread-launcher instances launch survival --username Steve

  # Relaunch with the remembered name and more memory
  bread-launcher instances launch survival --memory 6G

  # Live download dashboard
  bread-launcher instances launch survival --tui`,
		Aliases: []string{"play", "run"},
		Args:    cliutil.RequireName("instance"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			if !cmd.Flags().Changed("tui") {
				flags.TUI = a.Config.TUI.Enabled
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runLaunch(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Group of the instance")
	cmd.Flags().StringVarP(&flags.Username, "username", "u", "", "Offline player name (default: the last one used)")
	cmd.Flags().StringVarP(&flags.Memory, "memory", "m", "", "Memory for this launch, e.g. 4G (default: instance, then config)")
	cmd.Flags().BoolVar(&flags.TUI, "tui", false, "Show the interactive download dashboard (default: tui.enabled from the config)")

	return cmd
}

func runLaunch(ctx context.Context, a *app.App, stdout, stderr io.Writer, name string, flags *LaunchFlags) error {
	jsonMode := cliutil.IsJSONMode()

	// Game output must not interleave with the JSON document
	gameOut := stdout
	if jsonMode {
		gameOut = stderr
	}

	proc, err := a.Launch(ctx, app.LaunchOptions{
		Group:    flags.Group,
		Name:     name,
		Username: flags.Username,
		Memory:   flags.Memory,
		Stdout:   gameOut,
		Stderr:   stderr,
		Observe:  observer(flags.TUI && !jsonMode, name),
	})
	if err != nil {
		return cliutil.Fail(stdout, err)
	}
	if proc == nil {
		if jsonMode {
			return cliutil.WriteJSON(stdout, "Launch cancelled", map[string]any{"name": name, "started": false})
		}
		_, _ = fmt.Fprintln(stdout, "Launch cancelled")
		return nil
	}

	if !jsonMode && !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Started %s as %s (pid %d)\n", name, a.AccountName(), proc.PID())
	}

	waitErr := proc.Wait()
	code := proc.ExitCode()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return cliutil.Fail(stdout, fmt.Errorf("wait for game: %w", waitErr))
	}

	if jsonMode {
		if err := cliutil.WriteJSON(stdout, "Game exited", map[string]any{
			"name":      name,
			"started":   true,
			"pid":       proc.PID(),
			"exit_code": code,
		}); err != nil {
			return err
		}
	} else if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Game exited with code %d\n", code)
	}

	if code != 0 {
		return fmt.Errorf("game exited with code %d", code)
	}
	return nil
}

// observer picks how preparation progress is shown: the dashboard, or log
// lines when it returns nil.
func observer(useTUI bool, title string) app.Observer {
	if !useTUI {
		return nil
	}
	return func(bus *progress.Bus, task func(*progress.Bus) (bool, error)) (bool, error) {
		return tui.Run("Launching "+title, bus, tui.TaskFunc(task))
	}
}
