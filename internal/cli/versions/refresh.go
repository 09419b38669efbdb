package versions

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
)

// NewRefreshCommand creates the versions refresh subcommand
func NewRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download a fresh version manifest",
		Long: `Replace the mirrored version manifest with a fresh download.

If the download fails the previous manifest is kept.`,
		Example: `  bread-launcher versions refresh`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runRefresh(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runRefresh(ctx context.Context, a *app.App, stdout io.Writer) error {
	if err := a.Manifest.Refresh(ctx); err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("failed to refresh version manifest: %w", err))
	}

	latest := a.Manifest.Latest()
	count := len(a.Manifest.Versions())

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, "Version manifest refreshed", map[string]any{
			"count":  count,
			"latest": latest,
		})
	}
	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Refreshed version manifest: %d versions (latest release %s, latest snapshot %s)\n",
			count, latest.Release, latest.Snapshot)
	}
	return nil
}
