package instances

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
)

// RemoveFlags holds all flags for the remove command
type RemoveFlags struct {
	Group string
	Force bool
}

// NewRemoveCommand creates the instances remove subcommand
func NewRemoveCommand() *cobra.Command {
	flags := &RemoveFlags{}

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an instance and its directory",
		Long: `Remove an instance and delete its game directory, including worlds,
screenshots and mods. Shared versions, libraries and assets are kept.

An instance that is being launched cannot be removed.`,
		Example: `  # Remove after confirmation
  bread-launcher instances remove survival

  # Remove from a group without prompting
  bread-launcher instances remove snap --group testing --force`,
		Aliases: []string{"rm"},
		Args:    cliutil.RequireName("instance"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runRemove(a, cmd.OutOrStdout(), cmd.InOrStdin(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Group of the instance")
	cmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func runRemove(a *app.App, stdout io.Writer, stdin io.Reader, name string, flags *RemoveFlags) error {
	inst, err := a.Instances.Get(flags.Group, name)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	// JSON callers cannot answer a prompt
	if !flags.Force && !cliutil.IsJSONMode() {
		confirmed, err := confirmRemoval(stdin, stdout, inst.Name, inst.Dir)
		if err != nil {
			return err
		}
		if !confirmed {
			_, _ = fmt.Fprintln(stdout, "Removal cancelled")
			return nil
		}
	}

	if err := a.Instances.Remove(inst.Group, inst.Name); err != nil {
		return cliutil.Fail(stdout, err)
	}
	if err := a.Save(); err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("failed to save instances: %w", err))
	}

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, fmt.Sprintf("Instance %q removed", inst.Name), map[string]any{
			"name":  inst.Name,
			"group": inst.Group,
			"id":    inst.ID,
		})
	}
	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Removed instance %q from group %q\n", inst.Name, inst.Group)
	}
	return nil
}

func confirmRemoval(stdin io.Reader, stdout io.Writer, name, dir string) (bool, error) {
	_, _ = fmt.Fprintf(stdout, "This will permanently delete instance %q and everything in\n  %s\n\n", name, dir)
	_, _ = fmt.Fprint(stdout, "Remove instance? [y/N]: ")

	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false, fmt.Errorf("failed to read confirmation")
	}
	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes", nil
}
