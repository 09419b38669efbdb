package state

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// AppDirName is the directory name used under the platform data and config roots
	AppDirName = "bread-launcher"

	// Subdirectory names under the data root
	VersionsSubdir  = "versions"
	LibrariesSubdir = "libraries"
	AssetsSubdir    = "assets"
	JavaSubdir      = "java"
	InstancesSubdir = "instances"
	LogsSubdir      = "logs"
	NativesSubdir   = "natives"
	BackupsSubdir   = "backups"

	// File names
	ConfigFileName   = "config.yaml"
	ManifestFileName = "version_manifest_v2.json"
	SaveFileName     = "save.blauncher"
)

// Paths resolves every on-disk location below one data root.
// It is built once at start and passed explicitly; tests point it at t.TempDir().
type Paths struct {
	Root string
}

// NewPaths returns Paths rooted at root.
func NewPaths(root string) Paths {
	return Paths{Root: root}
}

// DefaultDataDir returns the platform data directory for the launcher.
// %APPDATA% is used on Windows, $HOME everywhere else.
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA is not set")
		}
		return filepath.Join(appData, AppDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir, "Library", "Application Support", AppDirName), nil
	}
	return filepath.Join(homeDir, ".local", "share", AppDirName), nil
}

// GetConfigDir returns the path to the launcher configuration directory.
// It defaults to ~/.config/bread-launcher/.
func GetConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configHome, AppDirName), nil
}

// GetConfigPath returns the path to the main configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// Manifest returns the path of the mirrored version manifest.
func (p Paths) Manifest() string {
	return filepath.Join(p.Root, ManifestFileName)
}

// Versions returns the directory holding version descriptors and client jars.
func (p Paths) Versions() string {
	return filepath.Join(p.Root, VersionsSubdir)
}

// VersionJSON returns versions/<id>.json.
func (p Paths) VersionJSON(id string) string {
	return filepath.Join(p.Versions(), id+".json")
}

// ClientJar returns versions/<id>.jar.
func (p Paths) ClientJar(id string) string {
	return filepath.Join(p.Versions(), id+".jar")
}

// Libraries returns the library root.
func (p Paths) Libraries() string {
	return filepath.Join(p.Root, LibrariesSubdir)
}

// Library maps a slash-separated artifact path onto the library root.
func (p Paths) Library(artifactPath string) string {
	return filepath.Join(p.Libraries(), filepath.FromSlash(artifactPath))
}

// Assets returns the asset root.
func (p Paths) Assets() string {
	return filepath.Join(p.Root, AssetsSubdir)
}

// AssetIndexes returns assets/indexes.
func (p Paths) AssetIndexes() string {
	return filepath.Join(p.Assets(), "indexes")
}

// AssetObjects returns assets/objects.
func (p Paths) AssetObjects() string {
	return filepath.Join(p.Assets(), "objects")
}

// AssetLegacy returns assets/virtual/legacy.
func (p Paths) AssetLegacy() string {
	return filepath.Join(p.Assets(), "virtual", "legacy")
}

// Java returns the runtime root.
func (p Paths) Java() string {
	return filepath.Join(p.Root, JavaSubdir)
}

// JavaHome returns java/<NN> for a runtime major version.
func (p Paths) JavaHome(major int) string {
	return filepath.Join(p.Java(), fmt.Sprintf("%02d", major))
}

// JavaExecutable returns java/<NN>/bin/java, or javaw.exe on Windows.
func (p Paths) JavaExecutable(major int) string {
	exe := "java"
	if runtime.GOOS == "windows" {
		exe = "javaw.exe"
	}
	return filepath.Join(p.JavaHome(major), "bin", exe)
}

// Instances returns the instance root.
func (p Paths) Instances() string {
	return filepath.Join(p.Root, InstancesSubdir)
}

// Natives returns the natives directory of an instance directory.
func (p Paths) Natives(instanceDir string) string {
	return filepath.Join(instanceDir, NativesSubdir)
}

// Logs returns the launcher log directory.
func (p Paths) Logs() string {
	return filepath.Join(p.Root, LogsSubdir)
}

// LogFile returns logs/<YYYY-MM-DD>.log for the given day.
func (p Paths) LogFile(day time.Time) string {
	return filepath.Join(p.Logs(), day.Format("2006-01-02")+".log")
}

// Backups returns the instance archive directory.
func (p Paths) Backups() string {
	return filepath.Join(p.Root, BackupsSubdir)
}

// SaveFile returns the compressed application state path.
func (p Paths) SaveFile() string {
	return filepath.Join(p.Root, SaveFileName)
}

// InitDirs creates the data directory layout.
func (p Paths) InitDirs() error {
	if p.Root == "" {
		return fmt.Errorf("data root cannot be empty")
	}

	dirs := []string{
		p.Root,
		p.Versions(),
		p.Libraries(),
		p.AssetIndexes(),
		p.Java(),
		p.Instances(),
		p.Logs(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// EnsureDir ensures that a directory exists, creating it if necessary.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory %s: %w", path, err)
	}
	return nil
}
