package state

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultManifestURL is the upstream version manifest.
	DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

	// DefaultRefreshInterval is how old the manifest mirror may get before an automatic refresh.
	DefaultRefreshInterval = 10 * 24 * time.Hour

	// MaxAssetWorkers caps parallel asset downloads.
	MaxAssetWorkers = 64
)

// Config represents the user configuration for bread-launcher.
type Config struct {
	Launcher  LauncherConfig  `yaml:"launcher"`
	Java      JavaConfig      `yaml:"java"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Manifest  ManifestConfig  `yaml:"manifest"`
	Logging   LoggingConfig   `yaml:"logging"`
	TUI       TUIConfig       `yaml:"tui"`
}

// LauncherConfig holds launcher identity and the data root.
type LauncherConfig struct {
	DataDir string `yaml:"data_dir"`
	Name    string `yaml:"name"`
}

// JavaConfig holds JVM defaults for launches.
type JavaConfig struct {
	Memory string `yaml:"memory"`
}

// DownloadsConfig holds download pipeline tuning.
type DownloadsConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	LibraryWorkers int           `yaml:"library_workers"`
	AssetWorkers   int           `yaml:"asset_workers"`
	Backoff        time.Duration `yaml:"backoff"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ManifestConfig holds version manifest settings.
type ManifestConfig struct {
	URL             string        `yaml:"url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// TUIConfig holds TUI configuration.
type TUIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Launcher: LauncherConfig{
			DataDir: "",
			Name:    "bread-launcher",
		},
		Java: JavaConfig{
			Memory: "4G",
		},
		Downloads: DownloadsConfig{
			MaxAttempts:    4,
			LibraryWorkers: 0,
			AssetWorkers:   MaxAssetWorkers,
			Backoff:        5 * time.Second,
			Timeout:        60 * time.Second,
		},
		Manifest: ManifestConfig{
			URL:             DefaultManifestURL,
			RefreshInterval: DefaultRefreshInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  true,
		},
		TUI: TUIConfig{
			Enabled: false,
		},
	}
}

// LoadConfig loads the configuration from the default config path.
func LoadConfig(ctx context.Context) (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadConfigFrom(ctx, configPath)
}

// LoadConfigFrom loads the configuration at configPath.
// A missing file is created with defaults. A file that does not parse is moved
// to configPath.corrupted and replaced with defaults.
func LoadConfigFrom(ctx context.Context, configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfigTo(ctx, cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset keys keep their defaults
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		backupPath := configPath + ".corrupted"
		if backupErr := os.Rename(configPath, backupPath); backupErr != nil {
			return nil, fmt.Errorf("config file is corrupted and failed to create backup: %w (original error: %v)", backupErr, err)
		}

		fresh := DefaultConfig()
		if saveErr := SaveConfigTo(ctx, fresh, configPath); saveErr != nil {
			return nil, fmt.Errorf("config file was corrupted (backed up to %s), failed to save fresh config: %w (original error: %v)", backupPath, saveErr, err)
		}

		return fresh, nil
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the default config path.
func SaveConfig(ctx context.Context, cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveConfigTo(ctx, cfg, configPath)
}

// SaveConfigTo validates cfg and writes it atomically to configPath.
func SaveConfigTo(ctx context.Context, cfg *Config, configPath string) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := AtomicWrite(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ValidateConfig validates the configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if cfg.Launcher.Name == "" {
		return fmt.Errorf("launcher name cannot be empty")
	}

	if err := ValidateMemory(cfg.Java.Memory); err != nil {
		return fmt.Errorf("invalid java memory: %w", err)
	}

	if cfg.Downloads.MaxAttempts < 1 || cfg.Downloads.MaxAttempts > 10 {
		return fmt.Errorf("max attempts must be between 1 and 10, got %d", cfg.Downloads.MaxAttempts)
	}

	if cfg.Downloads.LibraryWorkers < 0 {
		return fmt.Errorf("library workers must be >= 0, got %d", cfg.Downloads.LibraryWorkers)
	}

	if cfg.Downloads.AssetWorkers < 1 || cfg.Downloads.AssetWorkers > MaxAssetWorkers {
		return fmt.Errorf("asset workers must be between 1 and %d, got %d", MaxAssetWorkers, cfg.Downloads.AssetWorkers)
	}

	if cfg.Downloads.Backoff < 0 {
		return fmt.Errorf("backoff must be >= 0, got %v", cfg.Downloads.Backoff)
	}

	if cfg.Downloads.Timeout < time.Second {
		return fmt.Errorf("download timeout must be >= 1s, got %v", cfg.Downloads.Timeout)
	}

	if cfg.Manifest.URL == "" {
		return fmt.Errorf("manifest URL cannot be empty")
	}

	if cfg.Manifest.RefreshInterval < time.Hour {
		return fmt.Errorf("manifest refresh interval must be >= 1h, got %v", cfg.Manifest.RefreshInterval)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLogLevels {
		if cfg.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	return nil
}
