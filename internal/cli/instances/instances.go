// Package instances implements the instances command group.
package instances

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the instances command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Manage Minecraft instances",
		Long: `Create, list, remove, back up and launch Minecraft instances.

Each instance is an isolated game directory bound to one game version and,
optionally, a Fabric or Quilt loader. Instances are addressed by name within
a group. Instances created without --group land in "ungrouped".`,
		Example: `  # Create an instance of the newest release
  bread-launcher instances create survival

  # A Fabric snapshot instance in the "testing" group
  bread-launcher instances create snap --group testing --type snapshot --loader fabric

  # List instances
  bread-launcher instances list

  # Launch with a live progress view
  bread-launcher instances launch survival --username Steve --tui`,
		Aliases: []string{"instance", "inst", "i"},
	}

	cmd.AddCommand(NewCreateCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewRemoveCommand())
	cmd.AddCommand(NewLaunchCommand())
	cmd.AddCommand(NewBackupCommand())
	cmd.AddCommand(NewRestoreCommand())

	return cmd
}
