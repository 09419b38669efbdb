package instances

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/state"
)

// CreateFlags holds all flags for the create command
type CreateFlags struct {
	Group   string
	Version string
	Type    string
	Loader  string
	Memory  string
}

// NewCreateCommand creates the instances create subcommand
func NewCreateCommand() *cobra.Command {
	flags := &CreateFlags{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new instance",
		Long: `Create a new instance of a game version.

The version is looked up in the mirrored manifest and its descriptor is
downloaded right away. Libraries, assets and the Java runtime are fetched on
the first launch. With --loader fabric or --loader quilt the newest loader
profile for the version is installed as well.`,
		Example: `  # Newest release
  bread-launcher instances create survival

  # A specific version with its own memory setting
  bread-launcher instances create old --version 1.16.5 --memory 2G

  # Newest snapshot with Quilt
  bread-launcher instances create snap --type snapshot --loader quilt`,
		Args: cliutil.RequireName("instance"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.OpenApp(cmd)
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runCreate(cmd.Context(), a, cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Group, "group", "g", "", "Group to create the instance in")
	cmd.Flags().StringVarP(&flags.Version, "version", "v", manifest.LatestID, "Game version id, or latest")
	cmd.Flags().StringVarP(&flags.Type, "type", "t", manifest.TypeRelease, "Release type of the version (release, snapshot, old_beta, old_alpha)")
	cmd.Flags().StringVarP(&flags.Loader, "loader", "l", string(loader.Vanilla), "Mod loader (vanilla, fabric, quilt)")
	cmd.Flags().StringVarP(&flags.Memory, "memory", "m", "", "Memory for this instance (default: java.memory from the config)")

	return cmd
}

// runCreate executes the create command
func runCreate(ctx context.Context, a *app.App, stdout io.Writer, name string, flags *CreateFlags) error {
	l, err := loader.Parse(flags.Loader)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}
	if flags.Memory != "" {
		if err := state.ValidateMemory(flags.Memory); err != nil {
			return cliutil.Fail(stdout, apperr.New(apperr.Config, "instances.create", err))
		}
	}

	if err := a.LoadManifest(ctx); err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("failed to load version manifest: %w", err))
	}

	inst, err := a.Instances.Create(ctx, flags.Group, name, flags.Version, flags.Type, l)
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	if flags.Memory != "" {
		inst, err = a.Instances.Update(inst.Group, inst.Name, func(i *instance.Instance) {
			i.Memory = flags.Memory
		})
		if err != nil {
			return cliutil.Fail(stdout, err)
		}
	}

	if err := a.Save(); err != nil {
		return cliutil.Fail(stdout, fmt.Errorf("failed to save instances: %w", err))
	}

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, fmt.Sprintf("Instance %q created", inst.Name), map[string]any{
			"instance": inst,
			"dir":      inst.Dir,
		})
	}

	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Created instance %q in group %q\n", inst.Name, inst.Group)
		_, _ = fmt.Fprintf(stdout, "  Version:   %s (%s)\n", inst.VersionID, inst.ReleaseType)
		if inst.Loader != loader.Vanilla {
			_, _ = fmt.Fprintf(stdout, "  Loader:    %s %s\n", inst.Loader, inst.LoaderVersion)
		}
		_, _ = fmt.Fprintf(stdout, "  Directory: %s\n", inst.Dir)
		_, _ = fmt.Fprintf(stdout, "\nLaunch it with 'bread-launcher instances launch %s'\n", launchArgs(inst))
	}
	return nil
}

// launchArgs returns the name and, outside the default group, the group flag.
func launchArgs(inst *instance.Instance) string {
	if inst.Group == instance.Ungrouped {
		return inst.Name
	}
	return fmt.Sprintf("%s --group %s", inst.Name, inst.Group)
}
