// Package config implements the config command group.
package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/steviee/bread-launcher/internal/state"
)

// NewCommand creates the config command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and initialize the bread-launcher configuration.

Configuration is stored in ~/.config/bread-launcher/config.yaml by default
($XDG_CONFIG_HOME is honored). Any key can be overridden for one run with a
BREAD_* environment variable, e.g. BREAD_DATA_DIR or BREAD_MEMORY.`,
		Example: `  # View the effective configuration
  bread-launcher config show

  # Show the configuration file path
  bread-launcher config path

  # Reset the file to defaults
  bread-launcher config init --force`,
		Aliases: []string{"cfg"},
	}

	cmd.AddCommand(NewShowCommand())
	cmd.AddCommand(NewPathCommand())
	cmd.AddCommand(NewInitCommand())

	return cmd
}

// configPath returns the file the root command loaded.
func configPath() (string, error) {
	if p := viper.GetString("config_path"); p != "" {
		return p, nil
	}
	return state.GetConfigPath()
}
