// Package app builds the launcher's services from a configuration and owns
// the persisted application state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/assets"
	"github.com/steviee/bread-launcher/internal/backup"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/jre"
	"github.com/steviee/bread-launcher/internal/launch"
	"github.com/steviee/bread-launcher/internal/library"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/manifest"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
)

// SaveVersion is the schema version written into save.blauncher.
const SaveVersion = 1

// SaveState is the content of save.blauncher.
type SaveState struct {
	Version   int               `json:"version"`
	Instances instance.Snapshot `json:"instances"`
	Account   SavedAccount      `json:"account"`
}

// SavedAccount remembers the last offline player name.
type SavedAccount struct {
	Name string `json:"name,omitempty"`
}

// App is the wired service graph of one launcher process.
type App struct {
	Config    *state.Config
	Paths     state.Paths
	Host      rules.Host
	Client    *fetch.Client
	Manifest  *manifest.Store
	Loaders   *loader.Client
	Instances *instance.Manager
	Runtimes  *jre.Provisioner
	Libraries *library.Downloader
	Assets    *assets.Downloader
	Backups   *backup.Service

	// LauncherVersion is reported to the game.
	LauncherVersion string

	mu      sync.Mutex
	account SavedAccount
}

type options struct {
	httpClient  *http.Client
	host        *rules.Host
	loaderOpts  []loader.Option
	runtimeOpts []jre.Option
	assetOpts   []assets.Option
}

// Option customizes New.
type Option func(*options)

// WithHTTPClient replaces the HTTP client every download goes through.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHost overrides host detection.
func WithHost(h rules.Host) Option {
	return func(o *options) { o.host = &h }
}

// WithLoaderOptions passes options to the loader meta client.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(o *options) { o.loaderOpts = append(o.loaderOpts, opts...) }
}

// WithRuntimeOptions passes options to the Java runtime provisioner.
func WithRuntimeOptions(opts ...jre.Option) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, opts...) }
}

// WithAssetOptions passes options to the asset downloader.
func WithAssetOptions(opts ...assets.Option) Option {
	return func(o *options) { o.assetOpts = append(o.assetOpts, opts...) }
}

// New wires the services for cfg. Nothing touches the disk or network yet.
func New(cfg *state.Config, version string, opts ...Option) (*App, error) {
	if err := state.ValidateConfig(cfg); err != nil {
		return nil, apperr.New(apperr.Config, "app.new", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	dataDir := cfg.Launcher.DataDir
	if dataDir == "" {
		dir, err := state.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		dataDir = dir
	}
	paths := state.NewPaths(dataDir)

	host := rules.DetectHost()
	if o.host != nil {
		host = *o.host
	}

	if version == "" {
		version = "dev"
	}

	client := fetch.NewClient(&fetch.Config{
		Timeout:    cfg.Downloads.Timeout,
		Backoff:    cfg.Downloads.Backoff,
		UserAgent:  fmt.Sprintf("%s/%s", cfg.Launcher.Name, version),
		HTTPClient: o.httpClient,
	})

	attempts := cfg.Downloads.MaxAttempts
	store := manifest.NewStore(paths, client,
		manifest.WithURL(cfg.Manifest.URL),
		manifest.WithRefreshInterval(cfg.Manifest.RefreshInterval),
		manifest.WithMaxAttempts(attempts))
	loaders := loader.NewClient(client, paths, append([]loader.Option{loader.WithMaxAttempts(attempts)}, o.loaderOpts...)...)

	libOpts := []library.Option{library.WithMaxAttempts(attempts)}
	if cfg.Downloads.LibraryWorkers > 0 {
		libOpts = append(libOpts, library.WithWorkers(cfg.Downloads.LibraryWorkers))
	}
	assetOpts := append([]assets.Option{
		assets.WithWorkers(cfg.Downloads.AssetWorkers),
		assets.WithMaxAttempts(attempts),
	}, o.assetOpts...)
	runtimeOpts := append([]jre.Option{jre.WithMaxAttempts(attempts)}, o.runtimeOpts...)

	slog.Debug("wiring launcher", "data_dir", dataDir, "os", host.OS, "arch", host.Arch)

	return &App{
		Config:          cfg,
		Paths:           paths,
		Host:            host,
		Client:          client,
		Manifest:        store,
		Loaders:         loaders,
		Instances:       instance.NewManager(paths, store, client, loaders),
		Runtimes:        jre.NewProvisioner(client, paths, host, runtimeOpts...),
		Libraries:       library.NewDownloader(client, paths, host, libOpts...),
		Assets:          assets.NewDownloader(client, paths, assetOpts...),
		Backups:         backup.NewService(paths),
		LauncherVersion: version,
	}, nil
}

// Open creates the data layout and restores the saved instance map.
func (a *App) Open() error {
	if err := a.Paths.InitDirs(); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}

	var saved SaveState
	err := state.LoadSave(a.Paths.SaveFile(), &saved)
	switch {
	case errors.Is(err, state.ErrNoSave):
		slog.Debug("no saved state yet", "path", a.Paths.SaveFile())
		return nil
	case err != nil:
		return fmt.Errorf("load saved state: %w", err)
	}

	if saved.Version > SaveVersion {
		slog.Warn("saved state comes from a newer launcher", "version", saved.Version)
	}
	kept := a.Instances.Import(saved.Instances)

	a.mu.Lock()
	a.account = saved.Account
	a.mu.Unlock()

	slog.Debug("restored saved state", "instances", kept)
	return nil
}

// Save writes the instance map and account name to save.blauncher.
func (a *App) Save() error {
	a.mu.Lock()
	saved := SaveState{
		Version:   SaveVersion,
		Instances: a.Instances.Export(),
		Account:   a.account,
	}
	a.mu.Unlock()

	return state.WriteSave(a.Paths.SaveFile(), saved)
}

// LoadManifest loads the mirrored version manifest and refreshes it when stale.
func (a *App) LoadManifest(ctx context.Context) error {
	if err := a.Manifest.Load(ctx); err != nil {
		return err
	}
	a.Manifest.RefreshIfStale(ctx)
	return nil
}

// AccountName returns the remembered player name.
func (a *App) AccountName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account.Name
}

// SetAccountName remembers name for the next launch.
func (a *App) SetAccountName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.account.Name = name
}

// Preparer returns the launch pipeline over the app's downloaders.
func (a *App) Preparer() *launch.Preparer {
	return launch.NewPreparer(a.Client, a.Paths, a.Runtimes, a.Libraries, a.Assets, a.Config.Downloads.MaxAttempts)
}
