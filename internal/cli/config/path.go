package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
)

// NewPathCommand creates the config path subcommand
func NewPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "path",
		Short:   "Print the configuration file path",
		Example: `  $EDITOR "$(bread-launcher config path)"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(cmd.OutOrStdout())
		},
	}
}

func runPath(stdout io.Writer) error {
	path, err := configPath()
	if err != nil {
		return cliutil.Fail(stdout, err)
	}
	if cliutil.IsJSONMode() {
		return cliutil.WriteJSON(stdout, "", map[string]any{"path": path})
	}
	_, _ = fmt.Fprintln(stdout, path)
	return nil
}
