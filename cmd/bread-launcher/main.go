package main

import (
	"fmt"
	"os"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/cli"
)

// Version information (set by ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	BuiltBy   = "unknown"
)

func main() {
	if err := cli.NewRootCommand(Version, Commit, BuildTime, BuiltBy).Execute(); err != nil {
		if !cli.IsJSONOutput() {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds onto process exit codes.
func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Config:
		return 2
	case apperr.Cancelled:
		return 130
	default:
		return 1
	}
}
