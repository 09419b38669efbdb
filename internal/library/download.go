package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/rules"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
	"golang.org/x/sync/errgroup"
)

// Downloader fetches library artifacts and extracts natives.
type Downloader struct {
	client      *fetch.Client
	paths       state.Paths
	host        rules.Host
	features    rules.Features
	workers     int
	maxAttempts int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithWorkers bounds parallel downloads. Zero means runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithMaxAttempts sets the per-artifact attempt budget.
func WithMaxAttempts(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithFeatures enables rule features.
func WithFeatures(f rules.Features) Option {
	return func(d *Downloader) {
		d.features = f
	}
}

// NewDownloader creates a library downloader for host.
func NewDownloader(client *fetch.Client, paths state.Paths, host rules.Host, opts ...Option) *Downloader {
	d := &Downloader{
		client:      client,
		paths:       paths,
		host:        host,
		workers:     runtime.NumCPU(),
		maxAttempts: fetch.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches every library m needs on this host, then extracts the
// natives into instanceDir/natives. It returns false without an error when
// the bus was cancelled.
func (d *Downloader) Download(ctx context.Context, m *version.Metadata, instanceDir string, bus *progress.Bus) (bool, error) {
	jobs, err := Resolve(m, d.host, d.features)
	if err != nil {
		bus.Errored(fmt.Sprintf("Failed to resolve libraries: %v", err))
		return false, err
	}

	bus.Info(fmt.Sprintf("Downloading %d libraries", len(jobs)))
	bus.SetTotal(uint64(len(jobs)))
	slog.Info("downloading libraries", "version", m.ID, "count", len(jobs), "workers", d.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	var stopped atomic.Bool
	for _, job := range jobs {
		if bus.CheckStop() {
			stopped.Store(true)
			break
		}

		job := job
		g.Go(func() error {
			if bus.Cancelled() {
				stopped.Store(true)
				return nil
			}
			if err := d.fetch(gctx, job, bus); err != nil {
				return err
			}
			bus.Advance()
			return nil
		})
	}

	err = g.Wait()
	if stopped.Load() || bus.CheckStop() {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	nativesDir := d.paths.Natives(instanceDir)
	if err := state.EnsureDir(nativesDir); err != nil {
		return false, err
	}
	for _, job := range jobs {
		if !job.Extract {
			continue
		}
		if bus.CheckStop() {
			return false, nil
		}
		if _, err := ExtractNatives(d.paths.Library(job.Artifact.Path), nativesDir); err != nil {
			bus.Errored(fmt.Sprintf("Failed to extract %s: %v", job.Artifact.Path, err))
			return false, err
		}
	}

	bus.Info("Libraries ready")
	return true, nil
}

func (d *Downloader) fetch(ctx context.Context, job Job, bus *progress.Bus) error {
	a := job.Artifact
	dest := d.paths.Library(a.Path)

	bus.Downloading(a.Path)
	if err := d.client.Fetch(ctx, filepath.Dir(dest), filepath.Base(dest), a.URL, a.SHA1, d.maxAttempts); err != nil {
		bus.Errored(fmt.Sprintf("Failed to download %s: %v", a.Path, err))
		return fmt.Errorf("library %s: %w", job.Library, err)
	}
	return nil
}
