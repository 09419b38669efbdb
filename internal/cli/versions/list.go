package versions

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/manifest"
)

// ListFlags holds all flags for the list command
type ListFlags struct {
	Type     string
	Limit    int
	NoHeader bool
}

// VersionItem is one row of the list output.
type VersionItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Released string `json:"released"`
	Latest   bool   `json:"latest,omitempty"`
}

// NewListCommand creates the versions list subcommand
func NewListCommand() *cobra.Command {
	flags := &ListFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available Minecraft versions",
		Long: `List the versions of the mirrored manifest, newest first.

By default only releases are shown. Use --type to pick snapshot, old_beta,
old_alpha or all.`,
		Example: `  # All releases
  bread-launcher versions list

  # The five newest versions of any type
  bread-launcher versions list --type all --limit 5

  # JSON output for scripting
  bread-launcher versions list --json`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runList(cmd.Context(), a, cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Type, "type", "t", manifest.TypeRelease, "Version type (release, snapshot, old_beta, old_alpha, all)")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "n", 0, "Show at most N versions (0 shows all)")
	cmd.Flags().BoolVar(&flags.NoHeader, "no-header", false, "Omit table header")

	return cmd
}

func validateType(t string) error {
	if t == manifest.TypeAll || slices.Contains(manifest.Types, t) {
		return nil
	}
	return apperr.Errorf(apperr.Config, "versions.list", "unknown version type %q (valid: %v, all)", t, manifest.Types)
}

// runList executes the list command
func runList(ctx context.Context, a *app.App, stdout io.Writer, flags *ListFlags) error {
	if err := validateType(flags.Type); err != nil {
		return cliutil.Fail(stdout, err)
	}
	if flags.Limit < 0 {
		return cliutil.Fail(stdout, apperr.Errorf(apperr.Config, "versions.list", "limit must be >= 0, got %d", flags.Limit))
	}

	if err := a.LoadManifest(ctx); err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("failed to load version manifest: %w", err))
	}

	latest := a.Manifest.Latest()
	items := toItems(manifest.Filter(a.Manifest.Versions(), flags.Type, flags.Limit), latest)

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, "", map[string]any{
			"versions": items,
			"count":    len(items),
			"latest":   latest,
		})
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintf(stdout, "No %s versions found.\n", flags.Type)
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	if !flags.NoHeader {
		_, _ = fmt.Fprintln(w, "VERSION\tTYPE\tRELEASED\t")
	}
	for _, item := range items {
		marker := ""
		if item.Latest {
			marker = "latest"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Type, item.Released, marker)
	}
	return w.Flush()
}

func toItems(versions []manifest.Version, latest manifest.Latest) []VersionItem {
	items := make([]VersionItem, 0, len(versions))
	for _, v := range versions {
		released := v.ReleaseTime
		if len(released) >= len("2006-01-02") {
			released = released[:len("2006-01-02")]
		}
		items = append(items, VersionItem{
			ID:       v.ID,
			Type:     v.Type,
			Released: released,
			Latest:   v.ID == latest.Release || v.ID == latest.Snapshot,
		})
	}
	return items
}
