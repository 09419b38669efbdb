package config

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/state"
)

// InitFlags holds all flags for the init command
type InitFlags struct {
	Force bool
}

// NewInitCommand creates the config init subcommand
func NewInitCommand() *cobra.Command {
	flags := &InitFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the configuration file",
		Long: `Write the configuration file with every key spelled out.

Values already in the file are kept and missing keys get their defaults.
With --force the file is reset to the defaults.`,
		Example: `  # Fill in missing keys
  bread-launcher config init

  # Start over
  bread-launcher config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "Reset the file to defaults")

	return cmd
}

// runInit rewrites the file from its own content, so flag and environment
// overrides of this run never end up in it.
func runInit(ctx context.Context, stdout io.Writer, flags *InitFlags) error {
	path, err := configPath()
	if err != nil {
		return cliutil.Fail(stdout, err)
	}

	cfg := state.DefaultConfig()
	if !flags.Force {
		if cfg, err = state.LoadConfigFrom(ctx, path); err != nil {
			return cliutil.Fail(stdout, err)
		}
	}
	if err := state.SaveConfigTo(ctx, cfg, path); err != nil {
		return cliutil.Fail(stdout, err)
	}

	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, "Configuration written", map[string]any{
			"path":  path,
			"reset": flags.Force,
		})
	}
	if !cliutil.IsQuiet() {
		_, _ = fmt.Fprintf(stdout, "Wrote configuration to %s\n", path)
	}
	return nil
}
