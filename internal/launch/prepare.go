package launch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/assets"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/instance"
	"github.com/steviee/bread-launcher/internal/loader"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
)

// RuntimeProvider makes a Java runtime available.
type RuntimeProvider interface {
	Ensure(ctx context.Context, req version.JavaVersion, bus *progress.Bus) (string, bool, error)
}

// LibraryDownloader fetches libraries and extracts natives.
type LibraryDownloader interface {
	Download(ctx context.Context, m *version.Metadata, instanceDir string, bus *progress.Bus) (bool, error)
}

// AssetDownloader fetches an asset index and its objects.
type AssetDownloader interface {
	Download(ctx context.Context, ref version.AssetIndexRef, bus *progress.Bus) (*assets.Result, bool, error)
}

// Prepared is everything Compose needs from a successful preparation.
type Prepared struct {
	Metadata *version.Metadata
	JavaPath string
	Assets   *assets.Result
}

// Preparer materializes everything an instance needs before spawn.
type Preparer struct {
	client      *fetch.Client
	paths       state.Paths
	runtimes    RuntimeProvider
	libraries   LibraryDownloader
	assets      AssetDownloader
	maxAttempts int
}

// NewPreparer wires the pipeline stages.
func NewPreparer(client *fetch.Client, paths state.Paths, runtimes RuntimeProvider, libraries LibraryDownloader, objects AssetDownloader, maxAttempts int) *Preparer {
	if maxAttempts <= 0 {
		maxAttempts = fetch.DefaultMaxAttempts
	}
	return &Preparer{
		client:      client,
		paths:       paths,
		runtimes:    runtimes,
		libraries:   libraries,
		assets:      objects,
		maxAttempts: maxAttempts,
	}
}

// Prepare runs metadata, runtime, client jar, libraries and assets in that
// order, checking the stop signal between stages. It returns false without
// an error when the bus was cancelled. The caller holds the instance lease.
func (p *Preparer) Prepare(ctx context.Context, inst *instance.Instance, bus *progress.Bus) (*version.Metadata, bool, error) {
	prep, ok, err := p.Run(ctx, inst, bus)
	if prep == nil {
		return nil, ok, err
	}
	return prep.Metadata, ok, err
}

// Run is Prepare returning the runtime path alongside the metadata.
func (p *Preparer) Run(ctx context.Context, inst *instance.Instance, bus *progress.Bus) (*Prepared, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-bus.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("preparing instance", "name", inst.Name, "group", inst.Group, "version", inst.LaunchVersion(), "loader", inst.Loader)
	bus.Info(fmt.Sprintf("Preparing %s", inst.Name))

	m, err := p.metadata(inst)
	if err != nil {
		bus.Errored(fmt.Sprintf("Failed to read version %s: %v", inst.VersionID, err))
		return nil, false, err
	}

	if bus.CheckStop() {
		return nil, false, nil
	}
	javaPath, ok, err := p.runtimes.Ensure(ctx, m.Java(), bus)
	if !ok || err != nil {
		return nil, false, p.stopOr(bus, err)
	}

	if bus.CheckStop() {
		return nil, false, nil
	}
	bus.Info(fmt.Sprintf("Downloading client %s", m.ID))
	if err := version.DownloadClient(ctx, p.client, p.paths, m, p.maxAttempts); err != nil {
		if err := p.stopOr(bus, err); err != nil {
			bus.Errored(fmt.Sprintf("Failed to download client %s: %v", m.ID, err))
			return nil, false, err
		}
		return nil, false, nil
	}

	if bus.CheckStop() {
		return nil, false, nil
	}
	ok, err = p.libraries.Download(ctx, m, inst.Dir, bus)
	if !ok || err != nil {
		return nil, false, p.stopOr(bus, err)
	}

	if bus.CheckStop() {
		return nil, false, nil
	}
	res, ok, err := p.assets.Download(ctx, m.AssetIndex, bus)
	if !ok || err != nil {
		return nil, false, p.stopOr(bus, err)
	}

	bus.Info("Ready to launch")
	return &Prepared{Metadata: m, JavaPath: javaPath, Assets: res}, true, nil
}

// metadata parses the game descriptor and, when the instance launches a
// loader profile instead, merges that profile over it.
func (p *Preparer) metadata(inst *instance.Instance) (*version.Metadata, error) {
	m, err := version.Parse(p.paths, inst.Dir, inst.VersionID)
	if err != nil {
		return nil, err
	}
	id := inst.LaunchVersion()
	if id == inst.VersionID {
		return m, nil
	}

	if !inst.Loader.Installable() {
		return nil, apperr.New(apperr.Config, "launch.prepare", fmt.Errorf("%s: %w", inst.Loader, loader.ErrUnsupported))
	}
	profile, err := loader.LoadProfile(p.paths, id)
	if err != nil {
		return nil, err
	}
	if err := loader.Merge(m, profile); err != nil {
		return nil, err
	}
	return m, nil
}

// stopOr turns an error caused by the stop signal into a clean stop.
func (p *Preparer) stopOr(bus *progress.Bus, err error) error {
	if bus.CheckStop() {
		return nil
	}
	return err
}
