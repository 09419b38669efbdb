package instances

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/backup"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
)

// BackupFlags holds flags for the backup command.
type BackupFlags struct {
	Group string
	List  bool
	Keep  int
}

// NewBackupCommand creates the instances backup subcommand.
func NewBackupCommand() *cobra.Command {
	flags := &BackupFlags{}

	cmd := &cobra.Command{
		Use:   "backup <name>",
		Short: "Archive an instance directory",
		Long: `Archive an instance's game directory as a tar.gz file under <data-dir>/backups.

Extracted natives are left out since every launch recreates them. Only the
newest --keep archives of the instance are kept.`,
		Example: `  # Back up an instance
  bread-launcher instances backup survival

  # Keep the last ten archives
  bread-launcher instances backup survival --keep 10

  # List the archives of an instance
  bread-launcher instances backup survival --list`,
		Args: cliutil.RequireName("instance"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			if flags.List {
				return runBackupList(a, cmd.OutOrStdout(), args[0], flags.Group)
			}
			return runBackup(cmd.Context(), a, cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Group of the instance")
	cmd.Flags().BoolVar(&flags.List, "list", false, "List the instance's archives instead of creating one")
	cmd.Flags().IntVar(&flags.Keep, "keep", backup.DefaultKeep, "Keep the last N archives of the instance")

	return cmd
}

func runBackup(ctx context.Context, a *app.App, stdout io.Writer, name string, flags *BackupFlags) error {
	inst, err := a.Instances.Get(flags.Group, name)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	lease, err := a.Instances.Acquire(inst.Group, inst.Name)
	if err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("instance %q is in use: %w", inst.Name, err))
	}
	defer func() { _ = lease.Release() }()

	start := time.Now()
	archive, err := a.Backups.Create(ctx, inst, flags.Keep)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, fmt.Sprintf("Instance %q backed up", inst.Name), map[string]any{
			"archive":  archive,
			"duration": time.Since(start).String(),
		})
	}
	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Backed up %q to %s (%s)\n", inst.Name, archive.Path, units.HumanSize(float64(archive.SizeBytes)))
	}
	return nil
}

func runBackupList(a *app.App, stdout io.Writer, name, group string) error {
	inst, err := a.Instances.Get(group, name)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	archives, err := a.Backups.List(inst)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	if cliutil.IsJSONMode() {
		if archives == nil {
			archives = []backup.Archive{}
		}
		return cliutil.WriteJSON(stdout, "", map[string]any{
			"archives": archives,
			"count":    len(archives),
		})
	}

	if len(archives) == 0 {
		_, _ = fmt.Fprintf(stdout, "No backups found for instance %q\n", inst.Name)
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CREATED\tSIZE\tPATH")
	for _, b := range archives {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			b.CreatedAt.Local().Format("2006-01-02 15:04:05"), units.HumanSize(float64(b.SizeBytes)), b.Path)
	}
	return w.Flush()
}
