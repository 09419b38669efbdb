package instances

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
)

// RestoreFlags holds flags for the restore command.
type RestoreFlags struct {
	Group string
}

// NewRestoreCommand creates the instances restore subcommand.
func NewRestoreCommand() *cobra.Command {
	flags := &RestoreFlags{}

	cmd := &cobra.Command{
		Use:   "restore <name> [archive]",
		Short: "Replace an instance directory with a backup",
		Long: `Replace an instance's game directory with the content of an archive made
by 'instances backup'. Without an archive path the newest backup is used.

The current directory is put back if the restore fails.`,
		Example: `  # Roll back to the newest backup
  bread-launcher instances restore survival

  # Restore a specific archive
  bread-launcher instances restore survival ~/.local/share/bread-launcher/backups/<id>-20240501T120000.000.tar.gz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			var archive string
			if len(args) == 2 {
				archive = args[1]
			}
			return runRestore(cmd.Context(), a, cmd.OutOrStdout(), args[0], archive, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Group of the instance")

	return cmd
}

func runRestore(ctx context.Context, a *app.App, stdout io.Writer, name, archive string, flags *RestoreFlags) error {
	inst, err := a.Instances.Get(flags.Group, name)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	if archive == "" {
		archives, err := a.Backups.List(inst)
		if err != nil {
			return cliutil.Fail(stdout, err)
		}
		if len(archives) == 0 {
			return cliutil.Fail(stdout, apperr.Errorf(apperr.NotFound, "instances.restore", "no backups found for instance %q", inst.Name))
		}
		archive = archives[0].Path
	}

	lease, err := a.Instances.Acquire(inst.Group, inst.Name)
	if err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("instance %q is in use: %w", inst.Name, err))
	}
	defer func() { _ = lease.Release() }()

	if err := a.Backups.Restore(ctx, inst, archive); err != nil {
		return cliutil.Fail(stdout, err)
	}

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, fmt.Sprintf("Instance %q restored", inst.Name), map[string]any{
			"name":    inst.Name,
			"group":   inst.Group,
			"archive": archive,
		})
	}
	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Restored %q from %s\n", inst.Name, archive)
	}
	return nil
}
