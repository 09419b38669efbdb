// Package versions implements the versions command group.
package versions

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the versions command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Browse installable Minecraft versions",
		Long: `Browse the versions listed in the mirrored version manifest.

The manifest is downloaded on first use and refreshed automatically once it
is older than manifest.refresh_interval. Use 'versions refresh' to update it
right away.`,
		Example: `  # Ten newest releases
  bread-launcher versions list --limit 10

  # Every snapshot
  bread-launcher versions list --type snapshot

  # Download a fresh manifest
  bread-launcher versions refresh`,
		Aliases: []string{"version-list", "vl"},
	}

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewRefreshCommand())

	return cmd
}
