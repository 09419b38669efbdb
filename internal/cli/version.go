package cli

import (
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
)

// BuildInfo is what the release pipeline stamps into the binary.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	BuiltBy string `json:"built_by"`
}

// VersionInfo is the build plus the host facts the launcher resolves
// descriptors and natives against.
type VersionInfo struct {
	BuildInfo
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	RuleArch    string `json:"rule_arch"`
	GoVersion   string `json:"go_version"`
	DataDir     string `json:"data_dir"`
	ManifestURL string `json:"manifest_url,omitempty"`
}

// NewVersionCommand creates the version command
func NewVersionCommand(version, commit, date, builtBy string) *cobra.Command {
	build := BuildInfo{Version: version, Commit: commit, Date: date, BuiltBy: builtBy}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the launcher build together with the platform it resolves
natives and rules for and the data directory it installs into.`,
		Example: `  # Display version information
  bread-launcher version

  # Output in JSON format
  bread-launcher version --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := rules.DetectHost()
			dataDir, manifestURL := "", ""
			if a, err := cliutil.AppFrom(cmd.Context()); err == nil {
				host = a.Host
				dataDir = a.Paths.Root
				manifestURL = a.Config.Manifest.URL
			} else if dir, err := state.DefaultDataDir(); err == nil {
				dataDir = dir
			}
			return printVersion(cmd.OutOrStdout(), collectVersionInfo(build, host, state.NewPaths(dataDir), manifestURL))
		},
	}

	return cmd
}

func collectVersionInfo(build BuildInfo, host rules.Host, paths state.Paths, manifestURL string) VersionInfo {
	return VersionInfo{
		BuildInfo:   build,
		OS:          host.OS,
		Arch:        host.Arch,
		RuleArch:    host.NormalizedArch(),
		GoVersion:   runtime.Version(),
		DataDir:     paths.Root,
		ManifestURL: manifestURL,
	}
}

func printVersion(w io.Writer, info VersionInfo) error {
	if IsJSONOutput() {
		return cliutil.WriteJSON(w, "", map[string]any{"version": info})
	}

	if _, err := fmt.Fprintf(w, "bread-launcher version %s\n", info.Version); err != nil {
		return fmt.Errorf("write version: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Commit:\t%s\n", info.Commit)
	_, _ = fmt.Fprintf(tw, "Built:\t%s by %s\n", info.Date, info.BuiltBy)
	_, _ = fmt.Fprintf(tw, "Platform:\t%s/%s (rules: %s)\n", info.OS, info.Arch, info.RuleArch)
	_, _ = fmt.Fprintf(tw, "Go:\t%s\n", info.GoVersion)
	if info.DataDir != "" {
		_, _ = fmt.Fprintf(tw, "Data:\t%s\n", info.DataDir)
	}
	if info.ManifestURL != "" {
		_, _ = fmt.Fprintf(tw, "Manifest:\t%s\n", info.ManifestURL)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write version details: %w", err)
	}
	return nil
}
