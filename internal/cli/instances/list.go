package instances

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/instance"
)

// ListFlags holds all flags for the list command
type ListFlags struct {
	Group    string
	NoHeader bool
}

// NewListCommand creates the instances list subcommand
func NewListCommand() *cobra.Command {
	flags := &ListFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Long:  `List every instance, ordered by group and name.`,
		Example: `  # All instances
  bread-launcher instances list

  # Only the "modded" group
  bread-launcher instances list --group modded

  # JSON output for scripting
  bread-launcher instances list --json`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runList(a, cmd.OutOrStdout(), flags, time.Now())
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Only list instances of this group")
	cmd.Flags().BoolVar(&flags.NoHeader, "no-header", false, "Omit table header")

	return cmd
}

func runList(a *app.App, stdout io.Writer, flags *ListFlags, now time.Time) error {
	groups := a.Instances.Groups()
	if flags.Group != "" {
		if !slices.Contains(groups, flags.Group) {
			err := apperr.Errorf(apperr.NotFound, "instances.list", "no group %q (known groups: %s)", flags.Group, formatGroups(groups))
			return cliutil.Fail(stdout, err)
		}
		groups = []string{flags.Group}
	}
	items := filterGroup(a.Instances.List(), flags.Group)

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, "", map[string]any{
			"instances": items,
			"groups":    groups,
			"count":     len(items),
		})
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(stdout, "No instances found. Create one with 'bread-launcher instances create <name>'")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	if !flags.NoHeader {
		_, _ = fmt.Fprintln(w, "NAME\tGROUP\tVERSION\tLOADER\tLAST PLAYED")
	}
	for _, inst := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			inst.Name, inst.Group, inst.VersionID, formatLoader(inst), formatLastPlayed(inst.LastPlayed, now))
	}
	return w.Flush()
}

func filterGroup(items []instance.Instance, group string) []instance.Instance {
	out := make([]instance.Instance, 0, len(items))
	for _, inst := range items {
		if group != "" && inst.Group != group {
			continue
		}
		out = append(out, inst)
	}
	return out
}

func formatGroups(groups []string) string {
	if len(groups) == 0 {
		return "none"
	}
	return strings.Join(groups, ", ")
}

func formatLoader(inst instance.Instance) string {
	if inst.LoaderVersion == "" {
		return inst.Loader.String()
	}
	return inst.Loader.String() + " " + inst.LoaderVersion
}

// formatLastPlayed renders a relative age such as "3 days ago".
func formatLastPlayed(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return units.HumanDuration(now.Sub(t)) + " ago"
}
