package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/state"
	"gopkg.in/yaml.v3"
)

// NewShowCommand creates the config show subcommand
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after flag and environment overrides, as YAML
or, with --json, as the data of the JSON envelope.`,
		Example: `  bread-launcher config show
  BREAD_MEMORY=6G bread-launcher config show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliutil.AppFrom(cmd.Context())
			if err != nil {
				return cliutil.Fail(cmd.OutOrStdout(), err)
			}
			return runShow(cmd.OutOrStdout(), a.Config)
		},
	}
}

func runShow(stdout io.Writer, cfg *state.Config) error {
	if cliutil.IsJSONMode() {
		path, _ := configPath()
		return cliutil.WriteJSON(stdout, "", map[string]any{
			"path":   path,
			"config": cfg,
		})
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
