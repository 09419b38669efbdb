package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/steviee/bread-launcher/internal/app"
	"github.com/steviee/bread-launcher/internal/cli/cliutil"
	"github.com/steviee/bread-launcher/internal/cli/config"
	"github.com/steviee/bread-launcher/internal/cli/instances"
	"github.com/steviee/bread-launcher/internal/cli/versions"
	"github.com/steviee/bread-launcher/internal/state"
)

// EnvPrefix is the prefix of environment overrides (BREAD_DATA_DIR, ...).
const EnvPrefix = "BREAD"

var (
	// Global flags
	cfgFile string
	dataDir string
	jsonOut bool
	quiet   bool
	verbose bool

	// Global logger
	logger  *slog.Logger
	logFile *os.File
)

// NewRootCommand creates and returns the root cobra command
func NewRootCommand(version, commit, date, builtBy string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bread-launcher",
		Short: "Download, manage and launch Minecraft instances",
		Long: `bread-launcher installs Minecraft versions into isolated instances and launches them.

It provides:
  - A mirrored version manifest with release, snapshot and legacy versions
  - Instances grouped by name, each with its own game directory
  - Verified downloads of client jars, libraries, natives and assets
  - Managed Java runtimes matching each version's requirement
  - Fabric and Quilt loader profiles
  - Offline play with a stable per-name UUID`,
		Example: `  # Show the latest releases
  bread-launcher versions list --limit 5

  # Create an instance of the newest release
  bread-launcher instances create survival --version latest

  # Launch it with a live progress view
  bread-launcher instances launch survival --username Steve --tui`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			if err := initLogger(cmd.ErrOrStderr(), cfg); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			a, err := app.New(cfg, version)
			if err != nil {
				return err
			}
			cmd.SetContext(cliutil.WithApp(cmd.Context(), a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLogFile()
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/bread-launcher/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory holding versions, libraries, assets and instances")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")

	// Mark json and quiet as mutually exclusive
	rootCmd.MarkFlagsMutuallyExclusive("json", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddCommand(NewVersionCommand(version, commit, date, builtBy))
	rootCmd.AddCommand(NewVersionsCommand())
	rootCmd.AddCommand(NewInstancesCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// NewVersionsCommand creates the versions command group
func NewVersionsCommand() *cobra.Command {
	return versions.NewCommand()
}

// NewInstancesCommand creates the instances command group
func NewInstancesCommand() *cobra.Command {
	return instances.NewCommand()
}

// NewConfigCommand creates the config command group
func NewConfigCommand() *cobra.Command {
	return config.NewCommand()
}

// initLogger initializes the global logger from flags and config. Records
// are also appended to the day's log file when file logging is enabled.
func initLogger(out io.Writer, cfg *state.Config) error {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}

	switch {
	case viper.GetBool("quiet"):
		level = slog.LevelError
	case viper.GetBool("verbose"):
		level = slog.LevelDebug
	}

	if err := closeLogFile(); err != nil {
		return err
	}
	if cfg.Logging.File && cfg.Launcher.DataDir != "" {
		paths := state.NewPaths(cfg.Launcher.DataDir)
		if err := state.EnsureDir(paths.Logs()); err != nil {
			return err
		}
		f, err := os.OpenFile(paths.LogFile(time.Now()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(out, f)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if viper.GetBool("json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

func closeLogFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// initConfig loads the yaml config and applies flag and BREAD_* overrides.
func initConfig(ctx context.Context) (*state.Config, error) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	path := cfgFile
	if path == "" {
		p, err := state.GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := state.LoadConfigFrom(ctx, path)
	if err != nil {
		return nil, err
	}

	if v := viper.GetString("data_dir"); v != "" {
		cfg.Launcher.DataDir = v
	}
	if v := viper.GetString("memory"); v != "" {
		cfg.Java.Memory = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("manifest_url"); v != "" {
		cfg.Manifest.URL = v
	}

	if cfg.Launcher.DataDir == "" {
		dir, err := state.DefaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.Launcher.DataDir = dir
	}

	if err := state.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config after overrides: %w", err)
	}

	viper.Set("config_path", path)
	return cfg, nil
}

// GetLogger returns the global logger instance
func GetLogger() *slog.Logger {
	return logger
}

// IsJSONOutput returns true if JSON output is enabled
func IsJSONOutput() bool {
	return viper.GetBool("json")
}
