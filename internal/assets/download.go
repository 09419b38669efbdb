package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/fetch"
	"github.com/steviee/bread-launcher/internal/progress"
	"github.com/steviee/bread-launcher/internal/state"
	"github.com/steviee/bread-launcher/internal/version"
	"golang.org/x/sync/errgroup"
)

// Failure records one asset that could not be downloaded.
type Failure struct {
	Name string
	Hash string
	Err  error
}

// Result summarizes an asset download.
type Result struct {
	Layout     Layout
	Total      int
	Downloaded int
	Failed     []Failure
}

// Err joins the individual failures, or returns nil.
func (r *Result) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
	}
	return errors.Join(errs...)
}

type job struct {
	name   string
	hash   string
	target string
}

// Downloader fetches asset indexes and objects with a bounded worker pool.
type Downloader struct {
	client      *fetch.Client
	paths       state.Paths
	workers     int
	maxAttempts int
	baseURL     string
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithWorkers sets the pool size, capped at state.MaxAssetWorkers.
func WithWorkers(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.workers = min(n, state.MaxAssetWorkers)
		}
	}
}

// WithMaxAttempts sets the per-object attempt budget.
func WithMaxAttempts(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBaseURL overrides the object store.
func WithBaseURL(base string) Option {
	return func(d *Downloader) {
		if base != "" {
			d.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// NewDownloader creates an asset downloader.
func NewDownloader(client *fetch.Client, paths state.Paths, opts ...Option) *Downloader {
	d := &Downloader{
		client:      client,
		paths:       paths,
		workers:     state.MaxAssetWorkers,
		maxAttempts: fetch.DefaultMaxAttempts,
		baseURL:     ResourcesURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches the index ref points at and every object it lists.
// Individual failures are collected in the result and reported on bus; an
// error is returned only when the index cannot be obtained or every object
// failed. It returns false without an error when the bus was cancelled.
func (d *Downloader) Download(ctx context.Context, ref version.AssetIndexRef, bus *progress.Bus) (*Result, bool, error) {
	if err := state.ValidateVersion(ref.ID); err != nil {
		return nil, false, apperr.New(apperr.Config, "assets.download", fmt.Errorf("asset index id: %w", err))
	}
	if bus.CheckStop() {
		return nil, false, nil
	}

	bus.Info(fmt.Sprintf("Downloading asset index %s", ref.ID))
	if err := d.client.Fetch(ctx, d.paths.AssetIndexes(), ref.ID+".json", ref.URL, ref.SHA1, d.maxAttempts); err != nil {
		bus.Errored(fmt.Sprintf("Failed to download asset index %s: %v", ref.ID, err))
		return nil, false, fmt.Errorf("asset index %s: %w", ref.ID, err)
	}

	idx, err := LoadIndex(filepath.Join(d.paths.AssetIndexes(), ref.ID+".json"))
	if err != nil {
		bus.Errored(fmt.Sprintf("Failed to parse asset index %s: %v", ref.ID, err))
		return nil, false, err
	}

	layout := Classify(ref.ID, idx)
	jobs, err := d.plan(layout, idx)
	if err != nil {
		return nil, false, err
	}

	res := &Result{Layout: layout, Total: len(jobs)}
	slog.Info("downloading assets", "index", ref.ID, "layout", layout, "objects", len(jobs), "workers", d.workers)
	bus.Info(fmt.Sprintf("Downloading %d assets", len(jobs)))
	bus.SetTotal(uint64(len(jobs)))

	d.run(ctx, jobs, bus, res)
	if bus.CheckStop() {
		return res, false, nil
	}
	if err := ctx.Err(); err != nil {
		return res, false, fmt.Errorf("assets %s: %w", ref.ID, err)
	}

	if n := len(res.Failed); n > 0 {
		if n == res.Total {
			return res, false, fmt.Errorf("all %d assets failed: %w", n, res.Failed[0].Err)
		}
		slog.Warn("some assets failed to download", "failed", n, "total", res.Total)
		bus.Info(fmt.Sprintf("Assets ready, %d of %d failed", n, res.Total))
		return res, true, nil
	}

	bus.Info("Assets ready")
	return res, true, nil
}

// plan builds one job per distinct target path, in name order.
func (d *Downloader) plan(layout Layout, idx *Index) ([]job, error) {
	names := make([]string, 0, len(idx.Objects))
	for name := range idx.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]job, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		obj := idx.Objects[name]
		target, err := ObjectPath(d.paths, layout, name, obj.Hash)
		if err != nil {
			return nil, err
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		jobs = append(jobs, job{name: name, hash: obj.Hash, target: target})
	}
	return jobs, nil
}

// run drives the worker pool. Every job returns nil so one failed object
// never stops the others; failures are collected in res. Feeding stops once
// the bus or ctx is cancelled.
func (d *Downloader) run(ctx context.Context, jobs []job, bus *progress.Bus, res *Result) {
	if len(jobs) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	var (
		mu      sync.Mutex
		handled int
	)
	for _, j := range jobs {
		if bus.Cancelled() || ctx.Err() != nil {
			break
		}

		j := j
		g.Go(func() error {
			if bus.Cancelled() {
				return nil
			}

			bus.Downloading(j.name)
			err := d.client.Fetch(ctx, filepath.Dir(j.target), filepath.Base(j.target), ObjectURL(d.baseURL, j.hash), j.hash, d.maxAttempts)
			if err != nil && (bus.Cancelled() || ctx.Err() != nil) {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			handled++
			if err != nil {
				slog.Error("failed to download asset", "name", j.name, "hash", j.hash, "error", err)
				bus.Errored(fmt.Sprintf("Failed to download asset %s: %v", j.name, err))
				res.Failed = append(res.Failed, Failure{Name: j.name, Hash: j.hash, Err: err})
			} else {
				res.Downloaded++
				bus.Advance()
			}
			if handled%500 == 0 {
				slog.Debug("asset progress", "handled", handled, "total", len(jobs), "failed", len(res.Failed))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failed, func(i, k int) bool { return res.Failed[i].Name < res.Failed[k].Name })
}
